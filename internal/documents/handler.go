package documents

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"casedocs-backend/internal/cases"
	"casedocs-backend/internal/queue"
	"casedocs-backend/internal/shared/server/respond"
	"casedocs-backend/internal/shared/storage/object"
)

const defaultPresignTTL = 15 * time.Minute

// Handler exposes document lifecycle operations over HTTP.
type Handler struct {
	svc      *Service
	cases    cases.Repo
	producer *queue.Producer
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, casesRepo cases.Repo, producer *queue.Producer) *Handler {
	return &Handler{svc: svc, cases: casesRepo, producer: producer}
}

// RegisterRoutes attaches document routes to the group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.register)
	rg.POST("/documents/:id/confirm", h.confirm)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/download-url", h.downloadURL)
	rg.POST("/documents/:id/verify", h.verify)
	rg.POST("/documents/:id/reject", h.reject)
	rg.POST("/documents/:id/reprocess", h.reprocess)
	rg.GET("/cases/:caseId/documents", h.listByCase)
}

type registerRequest struct {
	CaseID       string `json:"caseId"`
	DocumentType string `json:"documentType"`
	FileName     string `json:"fileName"`
	TTLSeconds   int64  `json:"ttlSeconds"`
}

type registerResponse struct {
	Document  documentResponse  `json:"document"`
	UploadURL string            `json:"uploadUrl"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.CaseID = strings.TrimSpace(req.CaseID)
	req.DocumentType = strings.TrimSpace(req.DocumentType)
	req.FileName = strings.TrimSpace(req.FileName)
	if req.CaseID == "" || req.DocumentType == "" || req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "caseId, documentType, and fileName are required", nil)
		return
	}

	kase, err := h.cases.GetByID(c.Request.Context(), req.CaseID)
	if err != nil {
		if errors.Is(err, cases.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "case not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load case", nil)
		return
	}

	ttl := defaultPresignTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	upload, err := h.svc.RegisterUpload(c.Request.Context(), kase.ID, kase.ResidencyRegion, req.DocumentType, req.FileName, ttl)
	if err != nil {
		if errors.Is(err, object.ErrInvalidTTL) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "ttlSeconds is invalid", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to register upload", nil)
		return
	}

	c.Set("documentId", upload.Document.ID)
	c.Set("caseId", upload.Document.CaseID)
	respond.JSON(c, http.StatusCreated, registerResponse{
		Document:  toResponse(upload.Document),
		UploadURL: upload.Signed.URL,
		Fields:    upload.Signed.Fields,
	})
}

func (h *Handler) confirm(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.svc.ConfirmUpload(c.Request.Context(), id)
	if err != nil {
		h.respondDocumentError(c, err, "failed to confirm upload")
		return
	}
	if err := h.producer.EnqueueProcessing(c.Request.Context(), doc.ID); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue processing", nil)
		return
	}
	c.Set("documentId", doc.ID)
	c.Set("caseId", doc.CaseID)
	c.Set("statusTransition", string(StatusPending)+"->"+string(doc.Status))
	respond.OK(c, gin.H{"document": toResponse(doc)})
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.svc.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondDocumentError(c, err, "failed to load document")
		return
	}
	c.Set("documentId", doc.ID)
	respond.OK(c, gin.H{"document": toResponse(doc)})
}

func (h *Handler) downloadURL(c *gin.Context) {
	ttl := defaultPresignTTL
	if raw := strings.TrimSpace(c.Query("ttlSeconds")); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "ttlSeconds is invalid", nil)
			return
		}
		ttl = time.Duration(seconds) * time.Second
	}

	url, err := h.svc.DownloadURL(c.Request.Context(), c.Param("id"), ttl)
	if err != nil {
		if errors.Is(err, object.ErrInvalidTTL) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "ttlSeconds is invalid", nil)
			return
		}
		h.respondDocumentError(c, err, "failed to generate download url")
		return
	}
	respond.OK(c, gin.H{"downloadUrl": url})
}

type verifyRequest struct {
	Officer string `json:"officer"`
	Notes   string `json:"notes"`
}

func (h *Handler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Officer) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "officer is required", nil)
		return
	}
	doc, err := h.svc.Verify(c.Request.Context(), c.Param("id"), req.Officer, req.Notes)
	if err != nil {
		h.respondDocumentError(c, err, "failed to verify document")
		return
	}
	c.Set("documentId", doc.ID)
	c.Set("statusTransition", string(StatusProcessed)+"->"+string(doc.Status))
	respond.OK(c, gin.H{"document": toResponse(doc)})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "reason is required", nil)
		return
	}
	doc, err := h.svc.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.respondDocumentError(c, err, "failed to reject document")
		return
	}
	c.Set("documentId", doc.ID)
	respond.OK(c, gin.H{"document": toResponse(doc)})
}

func (h *Handler) reprocess(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.svc.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondDocumentError(c, err, "failed to load document")
		return
	}
	if doc.Status != StatusUploaded {
		respond.Error(c, http.StatusConflict, "conflict", "document is not queueable in status "+string(doc.Status), nil)
		return
	}
	if err := h.producer.EnqueueProcessing(c.Request.Context(), doc.ID); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue processing", nil)
		return
	}
	c.Set("documentId", doc.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{"queued": true})
}

func (h *Handler) listByCase(c *gin.Context) {
	docs, err := h.svc.Repo.ListByCase(c.Request.Context(), c.Param("caseId"))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toResponse(doc))
	}
	c.Set("caseId", c.Param("caseId"))
	respond.OK(c, gin.H{"documents": out})
}

func (h *Handler) respondDocumentError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, object.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, ErrStatusConflict):
		respond.Error(c, http.StatusConflict, "status_conflict", "document changed concurrently, retry", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

type documentResponse struct {
	ID                string         `json:"id"`
	CaseID            string         `json:"caseId"`
	DocumentType      string         `json:"documentType"`
	Title             string         `json:"title,omitempty"`
	OriginalFilename  string         `json:"originalFilename"`
	ContentType       string         `json:"contentType,omitempty"`
	SizeBytes         int64          `json:"sizeBytes,omitempty"`
	Status            string         `json:"status"`
	ExtractedData     map[string]any `json:"extractedData,omitempty"`
	VerifiedBy        string         `json:"verifiedBy,omitempty"`
	VerifiedAt        *time.Time     `json:"verifiedAt,omitempty"`
	VerificationNotes string         `json:"verificationNotes,omitempty"`
	RejectionReason   string         `json:"rejectionReason,omitempty"`
	UploadedAt        time.Time      `json:"uploadedAt"`
	ProcessedAt       *time.Time     `json:"processedAt,omitempty"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

func toResponse(doc Document) documentResponse {
	return documentResponse{
		ID:                doc.ID,
		CaseID:            doc.CaseID,
		DocumentType:      doc.DocumentType,
		Title:             doc.Title,
		OriginalFilename:  doc.OriginalFilename,
		ContentType:       doc.ContentType,
		SizeBytes:         doc.SizeBytes,
		Status:            string(doc.Status),
		ExtractedData:     doc.ExtractedData,
		VerifiedBy:        doc.VerifiedBy,
		VerifiedAt:        doc.VerifiedAt,
		VerificationNotes: doc.VerificationNotes,
		RejectionReason:   doc.RejectionReason,
		UploadedAt:        doc.UploadedAt,
		ProcessedAt:       doc.ProcessedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}
