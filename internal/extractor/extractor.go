package extractor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

// MediaKind is the declared type of an input artifact.
type MediaKind string

const (
	KindPNG       MediaKind = "image/png"
	KindJPEG      MediaKind = "image/jpeg"
	KindPDF       MediaKind = "application/pdf"
	KindPlainText MediaKind = "text/plain"
	KindEmailBody MediaKind = "message/rfc822-body"
)

var ErrUnsupportedMediaKind = errors.New("unsupported media kind")

// Result is the text produced from one artifact.
type Result struct {
	Text     string
	Method   string // "image-ocr" | "pdf-text" | "plain" | "email"
	Pages    int
	Duration time.Duration
}

type Config struct {
	Tesseract     string // binary name or absolute path; default "tesseract"
	TesseractLang string // default "eng"
	TempDir       string // default os.TempDir()
}

// Extractor turns artifacts into plain text.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *utils.Logger
}

func New(cfg Config, logger *utils.Logger) *Extractor {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return NewWithRunner(cfg, processRunner{logger: logger}, logger)
}

// NewWithRunner lets tests replace the OCR process.
func NewWithRunner(cfg Config, runner Runner, logger *utils.Logger) *Extractor {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract dispatches on the declared kind. An empty result with a nil
// error is possible (PDF without a text layer); callers must check.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind MediaKind, name string) (Result, error) {
	start := time.Now()
	var (
		res Result
		err error
	)

	switch kind {
	case KindPNG, KindJPEG:
		res, err = e.extractImage(ctx, data, kind)
	case KindPDF:
		res, err = ExtractPDF(data)
	case KindPlainText:
		var text string
		text, err = ExtractTXT(data)
		res = Result{Text: text, Method: "plain", Pages: 1}
	case KindEmailBody:
		res = Result{Text: string(data), Method: "email", Pages: 1}
	default:
		e.logger.Warn("Unsupported media kind", "media_kind", string(kind), "filename", name)
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedMediaKind, kind)
	}

	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("Failed to extract text", "error", err, "media_kind", string(kind), "filename", name)
		return res, err
	}

	e.logger.Debug("Text extracted",
		"media_kind", string(kind),
		"filename", name,
		"method", res.Method,
		"pages", res.Pages,
		"text_length", len(res.Text),
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}

// DetectMediaKind determines the kind from the filename extension with a
// fallback to the part's Content-Type header.
func DetectMediaKind(filename, headerContentType string) MediaKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return KindPNG
	case ".jpg", ".jpeg":
		return KindJPEG
	case ".pdf":
		return KindPDF
	case ".txt":
		return KindPlainText
	case ".eml":
		return KindEmailBody
	}

	ct := strings.ToLower(strings.TrimSpace(headerContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "image/jpg", "image/pjpeg":
		return KindJPEG
	case "text/txt", "application/txt", "application/x-txt":
		return KindPlainText
	}
	return MediaKind(ct)
}

// Supported reports whether Extract handles the kind.
func Supported(kind MediaKind) bool {
	switch kind {
	case KindPNG, KindJPEG, KindPDF, KindPlainText, KindEmailBody:
		return true
	}
	return false
}
