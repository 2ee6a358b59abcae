package extractor

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

const maxStderrLog = 4 << 10

// Runner starts the OCR engine. Tests swap it for a stub.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// processRunner runs the OCR engine as a child process that dies with ctx.
type processRunner struct {
	logger *utils.Logger
}

func (r processRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	started := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	log := r.logger.With("engine", filepath.Base(name), "duration_ms", time.Since(started).Milliseconds())
	if err != nil {
		log.Error("OCR engine exited with error", "error", err, "stderr", clip(stderr.String(), maxStderrLog))
		return stdout.Bytes(), stderr.Bytes(), err
	}
	log.Debug("OCR engine finished", "text_bytes", stdout.Len())
	return stdout.Bytes(), stderr.Bytes(), nil
}

// clip cuts s to at most n bytes.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
