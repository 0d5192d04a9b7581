package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/model"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/pkg/logger"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Metadata sources reported on upload
const (
	MetadataAPIProvided    = "api_provided"
	MetadataFilenameParsed = "filename_parsed"
)

type DocumentHandler struct {
	store  service.DocumentStore
	blobs  service.BlobStore
	queue  service.JobQueue
	config *config.Config
}

func NewDocumentHandler(store service.DocumentStore, blobs service.BlobStore, queue service.JobQueue, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{
		store:  store,
		blobs:  blobs,
		queue:  queue,
		config: cfg,
	}
}

// Upload accepts a sustainability report PDF, stores the raw bytes and
// enqueues it for processing
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		writeError(c, service.ValidationErr("no file provided"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" {
		writeError(c, service.ValidationErr("only PDF files are allowed"))
		return
	}

	maxBytes := h.config.Upload.MaxSizeBytes()
	if header.Size > maxBytes {
		writeError(c, service.ValidationErr(fmt.Sprintf("file exceeds the %d MB upload limit", h.config.Upload.MaxSizeMB)))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(c, service.ValidationErr("failed to read file"))
		return
	}
	if int64(len(data)) > maxBytes {
		writeError(c, service.ValidationErr(fmt.Sprintf("file exceeds the %d MB upload limit", h.config.Upload.MaxSizeMB)))
		return
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		writeError(c, service.ValidationErr("file content is not a PDF"))
		return
	}

	company := strings.TrimSpace(c.PostForm("company"))
	year, _ := strconv.Atoi(strings.TrimSpace(c.PostForm("year")))

	metadataSource := MetadataAPIProvided
	if company == "" {
		parsedCompany, parsedYear := model.ParseReportFilename(header.Filename)
		company = parsedCompany
		if year == 0 {
			year = parsedYear
		}
		metadataSource = MetadataFilenameParsed
	}
	if company == "" {
		writeError(c, service.ValidationErr("company is missing: send a company form field or name the file Company_Name_YYYY.pdf"))
		return
	}
	if year != 0 && (year < 1900 || year > 2100) {
		writeError(c, service.ValidationErr("year must be a plausible 4-digit year"))
		return
	}

	documentID := uuid.New().String()
	objectKey := fmt.Sprintf("documents/%s.pdf", documentID)

	ctx := c.Request.Context()
	if err := h.blobs.Put(ctx, objectKey, data, "application/pdf"); err != nil {
		writeError(c, err)
		return
	}

	doc := &model.Document{
		ID:        documentID,
		Filename:  header.Filename,
		Company:   company,
		Year:      year,
		ObjectKey: objectKey,
		Status:    model.StatusQueued,
	}
	if err := h.store.SaveDocument(ctx, doc); err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.queue.Enqueue(ctx, documentID); err != nil {
		writeError(c, err)
		return
	}

	logger.Info(ctx, "report uploaded",
		"document_id", documentID,
		"company", company,
		"year", year,
		"size_bytes", len(data),
		"metadata_source", metadataSource)

	c.JSON(http.StatusAccepted, gin.H{
		"document_id":     documentID,
		"filename":        header.Filename,
		"company":         company,
		"year":            year,
		"status":          model.StatusQueued,
		"metadata_source": metadataSource,
		"message":         "Report queued for processing",
	})
}

// Get returns the document record with its processing status
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.store.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Reprocess re-enqueues an existing document as a fresh pipeline run
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	doc, err := h.store.GetDocument(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.store.UpdateStatus(ctx, id, model.StatusQueued, ""); err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.queue.Enqueue(ctx, id); err != nil {
		writeError(c, err)
		return
	}

	logger.Info(ctx, "report requeued", "document_id", id, "company", doc.Company)

	c.JSON(http.StatusAccepted, gin.H{
		"document_id": id,
		"status":      model.StatusQueued,
		"message":     "Report queued for reprocessing",
	})
}
