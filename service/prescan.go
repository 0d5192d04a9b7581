package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Core climate commitments worth auditing
var claimKeywords = []string{
	"net zero",
	"carbon neutral",
	"zero emissions",
	"renewable energy",
}

var scope1Patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)scope\s*1[:\s]+([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)scope\s*1\s+emissions?[:\s]+([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)direct\s+emissions[:\s]+([\d,]+(?:\.\d+)?)`),
}

var scope2Patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)scope\s*2[:\s]+([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)scope\s*2\s+emissions?[:\s]+([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)indirect\s+emissions[:\s]+([\d,]+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)energy\s+indirect[:\s]+([\d,]+(?:\.\d+)?)`),
}

var targetYearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)by\s+(20\d{2})`),
	regexp.MustCompile(`(?i)target\s+year[:\s]+(20\d{2})`),
	regexp.MustCompile(`(?i)achieve.*?(20\d{2})`),
	regexp.MustCompile(`(?i)reach.*?(20\d{2})`),
	regexp.MustCompile(`(?i)goal.*?(20\d{2})`),
}

const (
	claimContextWindow = 200
	claimContextStored = 100
	maxCandidateClaims = 15
	maxScopeMentions   = 50
)

// CandidateClaim is a keyword hit found during the pre-scan, with enough
// surrounding context for the audit prompt
type CandidateClaim struct {
	Keyword    string
	Page       int
	TargetYear int
	Context    string
}

// ScopeMention is a numeric emissions figure found near a scope label
type ScopeMention struct {
	Value float64
	Page  int
}

// ReportScan is the heuristic evidence gathered from a report before the
// audit prompt is built
type ReportScan struct {
	Claims []CandidateClaim
	Scope1 []ScopeMention
	Scope2 []ScopeMention
}

// ScanReport walks every page collecting claim keyword hits and scope 1/2
// emission figures. Claims are capped with preference for pages that also
// carry numeric evidence; mentions are capped per scope.
func ScanReport(pages []PageText) *ReportScan {
	scan := &ReportScan{}
	metricPages := make(map[int]bool)

	for _, p := range pages {
		text := CleanText(p.Text)
		lower := strings.ToLower(text)

		s1 := scanScope(scope1Patterns, text, p.Page)
		s2 := scanScope(scope2Patterns, text, p.Page)
		if len(s1) > 0 || len(s2) > 0 {
			metricPages[p.Page] = true
		}
		scan.Scope1 = append(scan.Scope1, s1...)
		scan.Scope2 = append(scan.Scope2, s2...)

		for _, kw := range claimKeywords {
			idx := strings.Index(lower, kw)
			if idx < 0 {
				continue
			}
			context := claimContext(text, idx, len(kw))
			scan.Claims = append(scan.Claims, CandidateClaim{
				Keyword:    kw,
				Page:       p.Page,
				TargetYear: extractTargetYear(context),
				Context:    truncate(context, claimContextStored),
			})
		}
	}

	scan.Claims = prioritizeClaims(scan.Claims, metricPages)
	if len(scan.Scope1) > maxScopeMentions {
		scan.Scope1 = scan.Scope1[:maxScopeMentions]
	}
	if len(scan.Scope2) > maxScopeMentions {
		scan.Scope2 = scan.Scope2[:maxScopeMentions]
	}

	return scan
}

func scanScope(patterns []*regexp.Regexp, text string, page int) []ScopeMention {
	var mentions []ScopeMention
	seen := make(map[float64]bool)

	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			val, ok := parseNumber(m[1])
			if !ok || val <= 0 {
				continue
			}
			if seen[val] {
				continue
			}
			seen[val] = true
			mentions = append(mentions, ScopeMention{Value: val, Page: page})
		}
	}

	return mentions
}

// parseNumber handles thousands separators and a trailing period
func parseNumber(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.TrimRight(cleaned, ".")
	if cleaned == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// extractTargetYear finds a plausible commitment year in claim context
func extractTargetYear(text string) int {
	for _, re := range targetYearPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if year >= 2020 && year <= 2100 {
			return year
		}
	}
	return 0
}

func claimContext(text string, idx, kwLen int) string {
	start := idx - claimContextWindow
	if start < 0 {
		start = 0
	}
	end := idx + kwLen + claimContextWindow
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// prioritizeClaims keeps claims whose page also carries numeric evidence
// ahead of bare keyword hits, then caps the list
func prioritizeClaims(claims []CandidateClaim, metricPages map[int]bool) []CandidateClaim {
	sort.SliceStable(claims, func(i, j int) bool {
		iw, jw := metricPages[claims[i].Page], metricPages[claims[j].Page]
		if iw != jw {
			return iw
		}
		return false
	})
	if len(claims) > maxCandidateClaims {
		claims = claims[:maxCandidateClaims]
	}
	return claims
}
