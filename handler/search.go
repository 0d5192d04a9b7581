package handler

import (
	"net/http"
	"strconv"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/service"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	retrieval *service.RetrievalService
	config    *config.SearchConfig
}

func NewSearchHandler(retrieval *service.RetrievalService, cfg *config.SearchConfig) *SearchHandler {
	return &SearchHandler{retrieval: retrieval, config: cfg}
}

// Fields are pointers so an omitted field falls back to the config default
// while an explicit zero is still validated.
type searchRequest struct {
	Query          string   `json:"query"`
	Company        string   `json:"company"`
	MatchThreshold *float64 `json:"match_threshold"`
	MatchCount     *int     `json:"match_count"`
}

// Search answers a question from the indexed reports (JSON body)
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, service.ValidationErr("invalid JSON body: "+err.Error()))
		return
	}

	query := &model.SearchQuery{
		Query:          req.Query,
		Company:        req.Company,
		MatchThreshold: h.config.MatchThreshold,
		MatchCount:     h.config.MatchCount,
	}
	if req.MatchThreshold != nil {
		query.MatchThreshold = *req.MatchThreshold
	}
	if req.MatchCount != nil {
		query.MatchCount = *req.MatchCount
	}

	h.run(c, query)
}

// SearchGet answers a question passed as query parameters
func (h *SearchHandler) SearchGet(c *gin.Context) {
	query := &model.SearchQuery{
		Query:          c.Query("q"),
		Company:        c.Query("company"),
		MatchThreshold: h.config.MatchThreshold,
		MatchCount:     h.config.MatchCount,
	}

	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(c, service.ValidationErr("threshold must be a number"))
			return
		}
		query.MatchThreshold = v
	}
	if raw := c.Query("count"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, service.ValidationErr("count must be an integer"))
			return
		}
		query.MatchCount = v
	}

	h.run(c, query)
}

func (h *SearchHandler) run(c *gin.Context, query *model.SearchQuery) {
	result, err := h.retrieval.Search(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
