package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"vecbridge/internal/app"
	"vecbridge/internal/pkg/pdfextract"
	"vecbridge/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

type DocumentHandler struct {
	ingestService *app.IngestService
}

type IngestDocumentRequest struct {
	Name    string `json:"name" binding:"max=128"`
	Content string `json:"content" binding:"required"`
}

func NewDocumentHandler(ingestService *app.IngestService) *DocumentHandler {
	return &DocumentHandler{ingestService: ingestService}
}

func (h *DocumentHandler) Ingest(c *gin.Context) {
	tenantID, ok := getTenantFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req IngestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), app.IngestInput{
		TenantID: tenantID,
		Name:     req.Name,
		Content:  req.Content,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}

// UploadPDF accepts a multipart form with "file" (PDF) and optional "name",
// extracts text and ingests.
func (h *DocumentHandler) UploadPDF(c *gin.Context) {
	tenantID, ok := getTenantFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxPDFSize {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeContentTooLarge, "file too large (max 10MB)")
		return
	}
	if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are allowed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	text, err := pdfextract.ExtractText(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to extract text from PDF")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "PDF contains no extractable text")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), app.IngestInput{
		TenantID: tenantID,
		Name:     name,
		Content:  text,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, ok := getTenantFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.ingestService.ListDocuments(c.Request.Context(), tenantID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	tenantID, ok := getTenantFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	doc, err := h.ingestService.GetDocument(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	tenantID, ok := getTenantFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docID := c.Param("id")
	if err := h.ingestService.DeleteDocument(c.Request.Context(), tenantID, docID); err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, gin.H{"deleted_document_id": docID})
}

// Reingest resumes a failed or stale document from its last committed chunk.
func (h *DocumentHandler) Reingest(c *gin.Context) {
	tenantID, ok := getTenantFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	result, err := h.ingestService.Resume(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, result)
}
