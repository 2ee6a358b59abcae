package storage

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

// StagingKey is the object key of an artifact held for the lifetime of
// one job.
func StagingKey(jobID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "artifact"
	}
	return "staging/" + jobID + "/" + name
}

// Stager keeps a copy of each uploaded artifact while its job runs.
type Stager struct {
	store  Storage
	logger *utils.Logger
}

// NewStager returns a Stager over store. A nil store disables staging.
func NewStager(store Storage, logger *utils.Logger) *Stager {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Stager{store: store, logger: logger}
}

func (s *Stager) Enabled() bool {
	return s != nil && s.store != nil
}

// Stage uploads data and returns a release func that deletes it. Release
// never fails; a delete error is logged. It runs on a fresh context so a
// canceled job still cleans up.
func (s *Stager) Stage(ctx context.Context, jobID, filename string, data []byte, contentType string) (func(), error) {
	if !s.Enabled() {
		return func() {}, nil
	}

	key := StagingKey(jobID, filename)
	if err := s.store.Upload(ctx, key, data, contentType); err != nil {
		return func() {}, err
	}
	s.logger.Debug("artifact staged", "job_id", jobID, "key", key, "bytes", len(data))

	return func() {
		cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.Delete(cctx, key); err != nil {
			s.logger.Warn("failed to delete staged artifact", "job_id", jobID, "key", key, "error", err)
			return
		}
		s.logger.Debug("staged artifact deleted", "job_id", jobID, "key", key)
	}, nil
}
