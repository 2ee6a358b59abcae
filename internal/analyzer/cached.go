package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/BerylCAtieno/travel-extract/internal/cache"
	"github.com/BerylCAtieno/travel-extract/internal/prompt"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

// AcceptFunc reports whether a reply is worth serving again.
type AcceptFunc func(reply string) bool

// Forgetter is implemented by models that can drop a stored reply once the
// caller finds it unusable.
type Forgetter interface {
	Forget(prompt string)
}

// CachedModel serves repeated prompts from a cache. Errors, blank replies
// and replies rejected by accept are never stored.
type CachedModel struct {
	next   Model
	cache  cache.Cache
	ttl    time.Duration
	accept AcceptFunc
	logger *utils.Logger
}

// NewCachedModel wraps next. A nil accept stores every non-blank reply.
func NewCachedModel(next Model, c cache.Cache, ttl time.Duration, accept AcceptFunc, logger *utils.Logger) *CachedModel {
	if logger == nil {
		logger = utils.NopLogger()
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &CachedModel{next: next, cache: c, ttl: ttl, accept: accept, logger: logger}
}

func (m *CachedModel) Generate(ctx context.Context, p string) (string, error) {
	key := replyKey(p)
	if b, ok := m.cache.Get(key); ok {
		m.logger.Debug("model reply served from cache", "key", key)
		return string(b), nil
	}

	reply, err := m.next.Generate(ctx, p)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" || !m.accept(reply) {
		m.logger.Debug("model reply not cached", "key", key, "reply_length", len(reply))
		return reply, nil
	}
	if err := m.cache.Set(key, []byte(reply), m.ttl); err != nil {
		m.logger.Warn("failed to cache model reply", "error", err)
	}
	return reply, nil
}

// Forget drops the stored reply for p, if any.
func (m *CachedModel) Forget(p string) {
	key := replyKey(p)
	if err := m.cache.Delete(key); err != nil {
		m.logger.Warn("failed to evict model reply", "key", key, "error", err)
	}
}

func replyKey(p string) string {
	return cache.Key("reply", prompt.Key(p))
}
