package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/service"
	"github.com/gin-gonic/gin"
)

type CompanyHandler struct {
	store service.DocumentStore
	blobs service.BlobStore
}

func NewCompanyHandler(store service.DocumentStore, blobs service.BlobStore) *CompanyHandler {
	return &CompanyHandler{store: store, blobs: blobs}
}

// List returns the latest audited year per company
func (h *CompanyHandler) List(c *gin.Context) {
	companies, err := h.store.ListCompanies(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

// Get returns the audit detail for a company's latest (or requested) year
func (h *CompanyHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	company := c.Param("company")

	year, err := yearParam(c)
	if err != nil {
		writeError(c, err)
		return
	}

	doc, err := h.store.LatestReady(ctx, company, year)
	if err != nil {
		writeError(c, err)
		return
	}
	audit, err := h.store.GetAuditResult(ctx, doc.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{
		"document_id":  doc.ID,
		"company":      doc.Company,
		"year":         doc.Year,
		"leaf_rating":  audit.LeafRating,
		"ai_summary":   audit.AISummary,
		"scope1_total": audit.Scope1Total,
		"scope2_total": audit.Scope2Total,
		"claims":       audit.Claims,
	}
	if url, err := h.blobs.PresignedURL(ctx, doc.ObjectKey); err == nil && url != "" {
		resp["source"] = url
	}

	c.JSON(http.StatusOK, resp)
}

// History returns all audited years for a company, oldest first
func (h *CompanyHandler) History(c *gin.Context) {
	company := c.Param("company")

	history, err := h.store.CompanyHistory(c.Request.Context(), company)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(history) == 0 {
		writeError(c, service.NotFoundErr(fmt.Sprintf("no audited reports for %s", company)))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"company": history[0].Company,
		"history": history,
	})
}

// Claims returns the audited claims for a company's latest (or requested) year
func (h *CompanyHandler) Claims(c *gin.Context) {
	ctx := c.Request.Context()
	company := c.Param("company")

	year, err := yearParam(c)
	if err != nil {
		writeError(c, err)
		return
	}

	doc, err := h.store.LatestReady(ctx, company, year)
	if err != nil {
		writeError(c, err)
		return
	}
	audit, err := h.store.GetAuditResult(ctx, doc.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"company": doc.Company,
		"year":    doc.Year,
		"claims":  audit.Claims,
		"count":   len(audit.Claims),
	})
}

// Compare returns the latest value of one audit metric across companies.
// Companies without an audited report appear with a null value.
func (h *CompanyHandler) Compare(c *gin.Context) {
	ctx := c.Request.Context()

	metric := c.DefaultQuery("metric", "leaf_rating")
	if metric != "leaf_rating" && metric != "scope1_total" && metric != "scope2_total" {
		writeError(c, service.ValidationErr("metric must be one of leaf_rating, scope1_total, scope2_total"))
		return
	}

	var names []string
	for _, name := range strings.Split(c.Query("companies"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) < 2 {
		writeError(c, service.ValidationErr("companies must list at least two names, comma-separated"))
		return
	}

	results := make([]gin.H, 0, len(names))
	for _, name := range names {
		doc, err := h.store.LatestReady(ctx, name, 0)
		if err != nil {
			if service.IsNotFound(err) {
				results = append(results, gin.H{"company": name, "value": nil})
				continue
			}
			writeError(c, err)
			return
		}
		audit, err := h.store.GetAuditResult(ctx, doc.ID)
		if err != nil {
			if service.IsNotFound(err) {
				results = append(results, gin.H{"company": doc.Company, "value": nil})
				continue
			}
			writeError(c, err)
			return
		}
		results = append(results, gin.H{
			"company": doc.Company,
			"year":    doc.Year,
			"value":   metricValue(audit, metric),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"metric":  metric,
		"results": results,
	})
}

func metricValue(audit *model.AuditResult, metric string) interface{} {
	switch metric {
	case "leaf_rating":
		return audit.LeafRating
	case "scope1_total":
		return audit.Scope1Total
	default:
		return audit.Scope2Total
	}
}

// yearParam reads the optional year query parameter, 0 meaning any year
func yearParam(c *gin.Context) (int, error) {
	raw := c.Query("year")
	if raw == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 2100 {
		return 0, service.ValidationErr("year must be a plausible 4-digit year")
	}
	return year, nil
}
