package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vecbridge/internal/app"
	"vecbridge/internal/transport/http/response"
)

type QueryHandler struct {
	retrievalService *app.RetrievalService
}

type QueryRequest struct {
	Query       string   `json:"query" binding:"required"`
	TopK        int      `json:"top_k"`
	DocumentIDs []string `json:"document_ids"`
	Generate    bool     `json:"generate"`
}

func NewQueryHandler(retrievalService *app.RetrievalService) *QueryHandler {
	return &QueryHandler{retrievalService: retrievalService}
}

func (h *QueryHandler) Query(c *gin.Context) {
	tenantID, ok := getTenantFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.retrievalService.Query(c.Request.Context(), app.QueryInput{
		TenantID:    tenantID,
		Query:       req.Query,
		TopK:        req.TopK,
		DocumentIDs: req.DocumentIDs,
		Generate:    req.Generate,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}

// QueryDocuments returns document-level results: ranked chunk hits folded
// into one entry per document.
func (h *QueryHandler) QueryDocuments(c *gin.Context) {
	tenantID, ok := getTenantFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	matches, err := h.retrievalService.QueryDocuments(c.Request.Context(), app.QueryInput{
		TenantID:    tenantID,
		Query:       req.Query,
		TopK:        req.TopK,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, matches)
}
