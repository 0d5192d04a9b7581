package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
)

const maxExcerptChars = 12000

// Auditor runs the AI greenwashing assessment over an extracted report.
// The keyword prescan supplies candidate claims and scope figures so the
// model grades concrete evidence instead of free-associating.
type Auditor struct {
	gen TextGenerator
}

func NewAuditor(gen TextGenerator) *Auditor {
	return &Auditor{gen: gen}
}

type auditPayload struct {
	LeafRating  *int          `json:"leaf_rating"`
	AISummary   string        `json:"ai_summary"`
	Scope1Total *float64      `json:"scope1_total"`
	Scope2Total *float64      `json:"scope2_total"`
	Claims      []model.Claim `json:"claims"`
}

// Audit scans the report, asks the model for an assessment and validates the
// returned JSON. A response that cannot be parsed into the expected shape is
// a structural failure, not a retryable one.
func (a *Auditor) Audit(ctx context.Context, doc *model.Document, pages []PageText) (*model.AuditResult, error) {
	scan := ScanReport(pages)
	prompt := buildAuditPrompt(doc.Company, doc.Year, pages, scan)

	raw, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("audit generation failed: %w", err)
	}

	payload, err := parseAuditResponse(raw)
	if err != nil {
		return nil, err
	}

	result := &model.AuditResult{
		DocumentID:  doc.ID,
		LeafRating:  payload.LeafRating,
		AISummary:   strings.TrimSpace(payload.AISummary),
		Scope1Total: payload.Scope1Total,
		Scope2Total: payload.Scope2Total,
		Claims:      validateClaims(payload.Claims, pages),
	}

	if result.LeafRating != nil && (*result.LeafRating < 1 || *result.LeafRating > 5) {
		return nil, StructuralErr("audit", fmt.Errorf("leaf_rating %d out of range", *result.LeafRating))
	}
	if result.AISummary == "" {
		return nil, StructuralErr("audit", fmt.Errorf("model omitted ai_summary"))
	}
	if result.Scope1Total != nil && *result.Scope1Total < 0 {
		result.Scope1Total = nil
	}
	if result.Scope2Total != nil && *result.Scope2Total < 0 {
		result.Scope2Total = nil
	}

	return result, nil
}

func buildAuditPrompt(company string, year int, pages []PageText, scan *ReportScan) string {
	var b strings.Builder

	b.WriteString("You are auditing a corporate sustainability report for greenwashing.\n\n")
	fmt.Fprintf(&b, "Company: %s\n", company)
	if year > 0 {
		fmt.Fprintf(&b, "Report year: %d\n", year)
	}
	fmt.Fprintf(&b, "Pages with text: %d\n\n", len(pages))

	if len(scan.Claims) > 0 {
		b.WriteString("Candidate sustainability claims found by keyword scan:\n")
		for i, claim := range scan.Claims {
			fmt.Fprintf(&b, "%d. [page %d] %q", i+1, claim.Page, claim.Keyword)
			if claim.TargetYear > 0 {
				fmt.Fprintf(&b, " (target year %d)", claim.TargetYear)
			}
			if claim.Context != "" {
				fmt.Fprintf(&b, ": %s", claim.Context)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(scan.Scope1) > 0 || len(scan.Scope2) > 0 {
		b.WriteString("Scope emission figures detected:\n")
		for _, m := range scan.Scope1 {
			fmt.Fprintf(&b, "- Scope 1: %g (page %d)\n", m.Value, m.Page)
		}
		for _, m := range scan.Scope2 {
			fmt.Fprintf(&b, "- Scope 2: %g (page %d)\n", m.Value, m.Page)
		}
		b.WriteString("\n")
	}

	b.WriteString("Report excerpt:\n")
	b.WriteString(reportExcerpt(pages, maxExcerptChars))
	b.WriteString("\n\n")

	b.WriteString("Assess the report. Rate leaf_rating from 1 (heavy greenwashing, vague or unsupported claims) ")
	b.WriteString("to 5 (credible, specific, evidence-backed reporting). ")
	b.WriteString("Report scope1_total and scope2_total as the company-wide annual totals in tCO2e if stated, otherwise null. ")
	b.WriteString("List up to 15 concrete sustainability claims with the page they appear on.\n\n")
	b.WriteString("Respond with ONLY this JSON object and nothing else:\n")
	b.WriteString(`{"leaf_rating": <1-5 or null>, "ai_summary": "<2-4 sentences>", "scope1_total": <number or null>, "scope2_total": <number or null>, "claims": [{"claim": "<text>", "page": <number>, "target_year": <year or null>, "context": "<short quote>"}]}`)
	b.WriteString("\n")
	b.WriteString("If the report lacks enough evidence for a rating, set leaf_rating to null and say so in ai_summary.\n")

	return b.String()
}

// reportExcerpt concatenates cleaned page text with page markers up to limit
func reportExcerpt(pages []PageText, limit int) string {
	var b strings.Builder
	for _, page := range pages {
		text := CleanText(page.Text)
		if text == "" {
			continue
		}
		if b.Len() >= limit {
			break
		}
		remaining := limit - b.Len()
		fmt.Fprintf(&b, "[Page %d] ", page.Page)
		if len(text) > remaining {
			b.WriteString(text[:remaining])
			break
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func parseAuditResponse(raw string) (*auditPayload, error) {
	jsonText, err := extractJSON(raw)
	if err != nil {
		return nil, StructuralErr("audit", err)
	}

	var payload auditPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return nil, StructuralErr("audit", fmt.Errorf("failed to parse model output: %w", err))
	}

	return &payload, nil
}

// extractJSON pulls the JSON object out of a model reply, tolerating markdown
// code fences and surrounding prose
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return s[start : end+1], nil
}

// validateClaims drops claims that cite pages the report does not have and
// clears implausible target years
func validateClaims(claims []model.Claim, pages []PageText) []model.Claim {
	pageSet := make(map[int]bool, len(pages))
	for _, p := range pages {
		pageSet[p.Page] = true
	}

	valid := make([]model.Claim, 0, len(claims))
	for _, claim := range claims {
		claim.Claim = strings.TrimSpace(claim.Claim)
		if claim.Claim == "" {
			continue
		}
		if !pageSet[claim.Page] {
			continue
		}
		if claim.TargetYear != 0 && (claim.TargetYear < 2020 || claim.TargetYear > 2100) {
			claim.TargetYear = 0
		}
		claim.Context = truncate(strings.TrimSpace(claim.Context), claimContextStored)
		valid = append(valid, claim)
		if len(valid) >= maxCandidateClaims {
			break
		}
	}
	return valid
}
