package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/travel-extract/internal/models"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

const (
	DefaultMaxFileSize = 10 << 20 // 10MB
	maxEmailSize       = 2 << 20
	maxListLimit       = 500
)

// ExtractionService is satisfied by *services.ExtractionService.
type ExtractionService interface {
	ExtractUpload(ctx context.Context, req *models.UploadRequest) (*models.ExtractionResult, error)
	IngestEmail(ctx context.Context, req *models.EmailRequest) (*models.EmailResponse, error)
	GetBooking(ctx context.Context, category, id string) (*models.BookingRecord, error)
	ListBookings(ctx context.Context, category string, limit int) ([]*models.BookingRecord, error)
}

type ExtractionHandler struct {
	service     ExtractionService
	logger      *utils.Logger
	maxFileSize int64
}

func NewExtractionHandler(service ExtractionService, maxFileSize int64, logger *utils.Logger) *ExtractionHandler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &ExtractionHandler{
		service:     service,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

func (h *ExtractionHandler) tooLarge() error {
	return utils.NewBadRequestError(fmt.Sprintf("File size exceeds %dMB limit", h.maxFileSize>>20))
}

// UploadDocument handles POST /extractions/upload with multipart fields
// "file" and "category". The reply is the flat extraction result.
func (h *ExtractionHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	// Multipart framing adds a little on top of the file itself.
	limit := h.maxFileSize + 1<<20

	if r.ContentLength > limit {
		respondError(w, h.logger, h.tooLarge())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, h.logger, h.tooLarge())
			return
		}
		respondError(w, h.logger, utils.NewBadRequestError("Invalid form data"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, h.logger, utils.NewBadRequestError("No file provided"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		respondError(w, h.logger, utils.NewInternalError("Failed to read file"))
		return
	}
	if int64(len(data)) > h.maxFileSize {
		respondError(w, h.logger, h.tooLarge())
		return
	}
	if len(data) == 0 {
		respondError(w, h.logger, utils.NewBadRequestError("Uploaded file is empty"))
		return
	}

	h.logger.Info("File upload attempt",
		"filename", header.Filename,
		"reported_content_type", header.Header.Get("Content-Type"),
		"category", r.FormValue("category"),
		"size", len(data))

	res, err := h.service.ExtractUpload(r.Context(), &models.UploadRequest{
		File:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Category:    r.FormValue("category"),
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, res)
}

// InboundEmail handles POST /inbound/email from the mail webhook.
func (h *ExtractionHandler) InboundEmail(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEmailSize)

	var req models.EmailRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.respondEmailError(w, utils.NewBadRequestError("Invalid email payload").WithDetails(err.Error()))
		return
	}

	resp, err := h.service.IngestEmail(r.Context(), &req)
	if err != nil {
		h.respondEmailError(w, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, resp)
}

func (h *ExtractionHandler) respondEmailError(w http.ResponseWriter, err error) {
	e := appError(err)
	h.logger.Error("Email ingestion failed", "status", e.StatusCode, "kind", string(e.Kind), "error", err)

	details := e.Details
	if details == "" {
		details = string(e.Kind)
	}
	respondJSON(w, h.logger, e.StatusCode, models.EmailResponse{
		Success: false,
		Error:   e.Message,
		Details: details,
	})
}

func (h *ExtractionHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rec, err := h.service.GetBooking(r.Context(), vars["category"], vars["id"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, rec)
}

// ListBookings handles GET /bookings/{category}?limit=N.
func (h *ExtractionHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			respondError(w, h.logger, utils.NewBadRequestError(fmt.Sprintf("limit must be between 1 and %d", maxListLimit)))
			return
		}
		limit = n
	}

	recs, err := h.service.ListBookings(r.Context(), mux.Vars(r)["category"], limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"bookings": recs,
		"count":    len(recs),
	})
}
