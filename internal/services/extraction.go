package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BerylCAtieno/travel-extract/internal/analyzer"
	"github.com/BerylCAtieno/travel-extract/internal/category"
	"github.com/BerylCAtieno/travel-extract/internal/extractor"
	"github.com/BerylCAtieno/travel-extract/internal/models"
	"github.com/BerylCAtieno/travel-extract/internal/parser"
	"github.com/BerylCAtieno/travel-extract/internal/prompt"
	"github.com/BerylCAtieno/travel-extract/internal/repository"
	"github.com/BerylCAtieno/travel-extract/internal/storage"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

const maxDetailsChars = 500

// TextExtractor is satisfied by *extractor.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, kind extractor.MediaKind, name string) (extractor.Result, error)
}

// Deps are the collaborators of ExtractionService. Repo and Stager may be
// nil for a service that never persists (the extract command).
type Deps struct {
	Extractor TextExtractor
	Model     analyzer.Model
	Repo      repository.BookingRepository
	Stager    *storage.Stager
	Prompts   *prompt.Builder
	Logger    *utils.Logger

	OCRTimeout     time.Duration
	PersistTimeout time.Duration
}

// ExtractionService runs extraction jobs. Jobs share no mutable state, so
// one service serves concurrent requests.
type ExtractionService struct {
	extractor TextExtractor
	model     analyzer.Model
	repo      repository.BookingRepository
	stager    *storage.Stager
	prompts   *prompt.Builder
	logger    *utils.Logger

	ocrTimeout     time.Duration
	persistTimeout time.Duration
}

func NewExtractionService(d Deps) *ExtractionService {
	if d.Logger == nil {
		d.Logger = utils.NopLogger()
	}
	if d.Prompts == nil {
		d.Prompts = prompt.NewBuilder(prompt.DefaultMaxInputChars)
	}
	if d.Stager == nil {
		d.Stager = storage.NewStager(nil, d.Logger)
	}
	if d.OCRTimeout <= 0 {
		d.OCRTimeout = 45 * time.Second
	}
	if d.PersistTimeout <= 0 {
		d.PersistTimeout = 10 * time.Second
	}
	return &ExtractionService{
		extractor:      d.Extractor,
		model:          d.Model,
		repo:           d.Repo,
		stager:         d.Stager,
		prompts:        d.Prompts,
		logger:         d.Logger,
		ocrTimeout:     d.OCRTimeout,
		persistTimeout: d.PersistTimeout,
	}
}

// ExtractUpload runs one uploaded file through the pipeline and stores the
// result with source "upload".
func (s *ExtractionService) ExtractUpload(ctx context.Context, req *models.UploadRequest) (*models.ExtractionResult, error) {
	job := newJob(models.SourceUpload, s.logger)

	if len(req.File) == 0 {
		return nil, job.fail(utils.NewBadRequestError("No file provided"))
	}
	def, err := category.FromForm(req.Category)
	if err != nil {
		return nil, job.fail(routingError(err))
	}

	res, raw, err := s.fromFile(ctx, job, &def, req)
	if err != nil {
		return nil, job.fail(err)
	}

	rec := &models.BookingRecord{
		Category:          string(def.Category),
		Source:            models.SourceUpload,
		SourceDescription: req.Filename,
	}
	if err := s.persist(ctx, job, rec, res, raw); err != nil {
		return nil, job.fail(err)
	}
	return res, nil
}

// Preview extracts a file without storing anything. An empty category
// lets the model infer one.
func (s *ExtractionService) Preview(ctx context.Context, req *models.UploadRequest) (*models.ExtractionResult, error) {
	job := newJob(models.SourceCLI, s.logger)

	if len(req.File) == 0 {
		return nil, job.fail(utils.NewBadRequestError("No file provided"))
	}
	var def *category.Definition
	if strings.TrimSpace(req.Category) != "" {
		d, err := category.FromForm(req.Category)
		if err != nil {
			return nil, job.fail(routingError(err))
		}
		def = &d
	}

	res, _, err := s.fromFile(ctx, job, def, req)
	if err != nil {
		return nil, job.fail(err)
	}
	if err := job.advance(StateSucceeded); err != nil {
		return nil, job.fail(err)
	}
	return res, nil
}

// Extract runs already-extracted text through the pipeline without
// storing it. An empty category lets the model infer one.
func (s *ExtractionService) Extract(ctx context.Context, req models.ExtractionRequest) (*models.ExtractionResult, error) {
	job := newJob(models.SourceCLI, s.logger)

	var def *category.Definition
	if strings.TrimSpace(req.Category) != "" {
		d, err := category.FromForm(req.Category)
		if err != nil {
			return nil, job.fail(routingError(err))
		}
		def = &d
	}

	if err := s.textExtracted(job, req.SourceText, "text"); err != nil {
		return nil, job.fail(err)
	}
	res, _, err := s.analyze(ctx, job, def, req.SourceText)
	if err != nil {
		return nil, job.fail(err)
	}
	if err := job.advance(StateSucceeded); err != nil {
		return nil, job.fail(err)
	}
	return res, nil
}

// IngestEmail routes an inbound message by its destination address and
// stores the result with source "email". Routing failures write no row.
func (s *ExtractionService) IngestEmail(ctx context.Context, req *models.EmailRequest) (*models.EmailResponse, error) {
	job := newJob(models.SourceEmail, s.logger)

	switch {
	case strings.TrimSpace(req.To) == "":
		return nil, job.fail(utils.NewBadRequestError("Destination address is required"))
	case strings.TrimSpace(req.From) == "":
		return nil, job.fail(utils.NewBadRequestError("Sender address is required"))
	case strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.HTML) == "":
		return nil, job.fail(utils.NewBadRequestError("Message body is required"))
	}

	def, err := category.FromAddress(req.To)
	if err != nil {
		return nil, job.fail(routingError(err))
	}

	body := req.Text
	if strings.TrimSpace(body) == "" {
		body = extractor.HTMLToText(req.HTML)
	}
	out, err := s.extractor.Extract(ctx, []byte(body), extractor.KindEmailBody, req.Subject)
	if err != nil {
		return nil, job.fail(utils.NewAppError(utils.KindExtractionFailed, "Failed to read message body", err))
	}

	text := out.Text
	if subject := strings.TrimSpace(req.Subject); subject != "" && strings.TrimSpace(text) != "" {
		text = "Subject: " + subject + "\n\n" + text
	}
	if err := s.textExtracted(job, text, out.Method); err != nil {
		return nil, job.fail(err)
	}

	res, raw, err := s.analyze(ctx, job, &def, text)
	if err != nil {
		return nil, job.fail(err)
	}

	sender := strings.TrimSpace(req.From)
	rec := &models.BookingRecord{
		Category:          string(def.Category),
		Source:            models.SourceEmail,
		SourceDescription: req.Subject,
		Sender:            &sender,
	}
	if err := s.persist(ctx, job, rec, res, raw); err != nil {
		return nil, job.fail(err)
	}

	return &models.EmailResponse{
		Success:  true,
		ID:       rec.ID,
		Category: string(def.Category),
		Result:   res,
	}, nil
}

// GetBooking returns one stored record. The category accepts either its
// token or its name.
func (s *ExtractionService) GetBooking(ctx context.Context, cat, id string) (*models.BookingRecord, error) {
	def, err := category.FromForm(cat)
	if err != nil {
		return nil, routingError(err)
	}
	if strings.TrimSpace(id) == "" {
		return nil, utils.NewBadRequestError("Booking ID is required")
	}
	if s.repo == nil {
		return nil, utils.NewInternalError("Storage is not configured")
	}

	rec, err := s.repo.GetByID(ctx, def.Category, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, utils.NewNotFoundError("Booking not found")
	}
	if err != nil {
		s.logger.Error("Failed to get booking", "error", err, "category", string(def.Category), "id", id)
		return nil, utils.NewUpstreamError("Failed to retrieve booking", err)
	}
	return rec, nil
}

func (s *ExtractionService) ListBookings(ctx context.Context, cat string, limit int) ([]*models.BookingRecord, error) {
	def, err := category.FromForm(cat)
	if err != nil {
		return nil, routingError(err)
	}
	if s.repo == nil {
		return nil, utils.NewInternalError("Storage is not configured")
	}

	recs, err := s.repo.List(ctx, def.Category, limit)
	if err != nil {
		s.logger.Error("Failed to list bookings", "error", err, "category", string(def.Category))
		return nil, utils.NewUpstreamError("Failed to list bookings", err)
	}
	return recs, nil
}

// fromFile stages the artifact for the life of the job, extracts its
// text and runs the model stages.
func (s *ExtractionService) fromFile(ctx context.Context, job *Job, def *category.Definition, req *models.UploadRequest) (*models.ExtractionResult, string, error) {
	kind := extractor.DetectMediaKind(req.Filename, req.ContentType)
	if !extractor.Supported(kind) {
		return nil, "", utils.NewAppError(utils.KindUnsupportedMediaKind,
			fmt.Sprintf("Unsupported file type %q. Use PNG, JPEG, PDF or plain text", string(kind)), nil)
	}

	release, err := s.stager.Stage(ctx, job.ID, req.Filename, req.File, string(kind))
	if err != nil {
		return nil, "", utils.NewUpstreamError("Failed to stage artifact", err)
	}
	defer release()

	ocrCtx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	out, err := s.extractor.Extract(ocrCtx, req.File, kind, req.Filename)
	cancel()
	if err != nil {
		return nil, "", extractionError(kind, err)
	}

	if err := s.textExtracted(job, out.Text, out.Method); err != nil {
		return nil, "", err
	}
	return s.analyze(ctx, job, def, out.Text)
}

// textExtracted fails the job before any prompt is built when there is
// nothing to send.
func (s *ExtractionService) textExtracted(job *Job, text, method string) error {
	if strings.TrimSpace(text) == "" {
		return utils.NewAppError(utils.KindExtractionFailed,
			"No text could be extracted from the document. A scanned PDF needs to be uploaded as an image", nil)
	}
	return job.advance(StateTextExtracted, "method", method, "text_length", utf8.RuneCountInString(text))
}

// analyze covers prompt, model call, parse and schema check.
func (s *ExtractionService) analyze(ctx context.Context, job *Job, def *category.Definition, text string) (*models.ExtractionResult, string, error) {
	p, truncated := s.prompts.Build(def, text)
	if err := job.advance(StatePromptBuilt, "prompt_length", len(p), "truncated", truncated); err != nil {
		return nil, "", err
	}

	reply, err := s.model.Generate(ctx, p)
	if err != nil {
		if utils.KindOf(err) == utils.KindInternal {
			err = utils.NewUpstreamError("Generation model request failed", err)
		}
		return nil, "", err
	}
	if err := job.advance(StateModelInvoked, "reply_length", len(reply)); err != nil {
		return nil, "", err
	}

	obj, err := parser.Parse(reply)
	if err != nil {
		s.forget(p)
		return nil, reply, parseError(err, reply)
	}
	if err := job.advance(StateResponseParsed, "keys", len(obj)); err != nil {
		return nil, reply, err
	}

	res := parser.Normalize(obj, def)
	if def != nil {
		doc, err := json.Marshal(res)
		if err != nil {
			return nil, reply, utils.NewAppError(utils.KindInternal, "Failed to encode result", err)
		}
		if err := def.Validate(doc); err != nil {
			s.forget(p)
			return nil, reply, utils.NewAppError(utils.KindMalformedJSON, "Model reply does not match the category schema", err).
				WithDetails(snippet(reply))
		}
	}
	return &res, reply, nil
}

// forget evicts a cached reply that turned out unusable, so a retried
// upload reaches the model again.
func (s *ExtractionService) forget(p string) {
	if f, ok := s.model.(analyzer.Forgetter); ok {
		f.Forget(p)
	}
}

func (s *ExtractionService) persist(ctx context.Context, job *Job, rec *models.BookingRecord, res *models.ExtractionResult, raw string) error {
	if s.repo == nil {
		return utils.NewInternalError("Storage is not configured")
	}

	rec.ID = utils.GenerateID()
	rec.JobID = job.ID
	rec.DocumentType = res.DocumentType
	rec.Fields = res.Fields
	rec.RawReply = raw
	rec.CreatedAt = time.Now().UTC()

	pctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.repo.Insert(pctx, rec); err != nil {
		return utils.NewUpstreamError("Failed to store booking", err)
	}

	return job.advance(StateSucceeded,
		"record_id", rec.ID,
		"category", rec.Category,
		"duration_ms", time.Since(job.StartedAt).Milliseconds(),
	)
}

func routingError(err error) error {
	if errors.Is(err, category.ErrMissingCategory) {
		return utils.NewAppError(utils.KindValidation, "Category is required", err)
	}
	return utils.NewAppError(utils.KindUnknownCategory,
		"Unknown category. Use one of flights, accommodation, event, transport, cruise", err)
}

func extractionError(kind extractor.MediaKind, err error) error {
	switch {
	case errors.Is(err, extractor.ErrUnsupportedMediaKind):
		return utils.NewAppError(utils.KindUnsupportedMediaKind, "Unsupported file type", err)
	case kind == extractor.KindPNG || kind == extractor.KindJPEG:
		return utils.NewUpstreamError("OCR failed", err)
	default:
		return utils.NewAppError(utils.KindExtractionFailed, "Failed to extract text from document", err)
	}
}

func parseError(err error, reply string) error {
	var kind utils.ErrorKind
	switch {
	case errors.Is(err, parser.ErrEmptyReply):
		kind = utils.KindEmptyReply
	case errors.Is(err, parser.ErrNoJSONFound):
		kind = utils.KindNoJSONFound
	default:
		kind = utils.KindMalformedJSON
	}
	return utils.NewAppError(kind, "Could not read the model reply", err).WithDetails(snippet(reply))
}

func snippet(s string) string {
	if utf8.RuneCountInString(s) <= maxDetailsChars {
		return s
	}
	return string([]rune(s)[:maxDetailsChars]) + "..."
}
