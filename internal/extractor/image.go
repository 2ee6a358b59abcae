package extractor

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	reBoxNoise   = regexp.MustCompile(`[│┃┆┇┊┋]+`)
	reSpaceRun   = regexp.MustCompile(`[ \t]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// extractImage stores the image in a temp file for tesseract and removes
// it on every exit path. The OCR call is retried once.
func (e *Extractor) extractImage(ctx context.Context, data []byte, kind MediaKind) (Result, error) {
	ext := ".png"
	if kind == KindJPEG {
		ext = ".jpg"
	}

	path, err := writeTemp(e.cfg.TempDir, "travel-ocr-*"+ext, data)
	if err != nil {
		return Result{Method: "image-ocr"}, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("Failed to remove OCR temp file", "path", path, "error", err)
		}
	}()

	log := e.logger.With("media_kind", string(kind))
	text, err := e.tesseract(ctx, path)
	if err != nil && ctx.Err() == nil {
		log.Warn("OCR failed, retrying once", "error", err)
		text, err = e.tesseract(ctx, path)
	}
	if err != nil {
		return Result{Method: "image-ocr"}, err
	}
	log.Debug("OCR text read", "text_bytes", len(text))

	return Result{
		Text:   normalizeOCR(text),
		Method: "image-ocr",
		Pages:  1,
	}, nil
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, clip(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}

func writeTemp(dir, pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

// normalizeOCR strips box-drawing noise and collapses whitespace runs.
func normalizeOCR(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	s = reBoxNoise.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSpace(reSpaceRun.ReplaceAllString(ln, " "))
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
