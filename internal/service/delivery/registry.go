package delivery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"milk-delivery/internal/logger"
	"milk-delivery/internal/metrics"
)

const defaultLoadTimeout = 15 * time.Second

// Registry owns one Store per owning account.
type Registry struct {
	remote      *Remote
	log         *zap.SugaredLogger
	metrics     *metrics.Delivery
	loadTimeout time.Duration

	loads singleflight.Group

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry returns an empty Registry whose stores share remote.
func NewRegistry(remote *Remote, log *zap.SugaredLogger, m *metrics.Delivery) *Registry {
	return &Registry{
		remote:      remote,
		log:         logger.OrNop(log),
		metrics:     m,
		loadTimeout: defaultLoadTimeout,
		stores:      make(map[string]*Store),
	}
}

// Configured reports whether stores are backed by a remote.
func (r *Registry) Configured() bool {
	return r.remote.configured()
}

// Store returns the owner's Store. Until one refresh has succeeded, every
// call loads it again. The load is detached from ctx so a caller that goes
// away does not leave the Store empty for everyone else, and concurrent
// callers for one owner share a single load.
func (r *Registry) Store(ctx context.Context, ownerID string) *Store {
	r.mu.Lock()
	s, ok := r.stores[ownerID]
	if !ok {
		s = NewStore(ownerID, r.remote, r.log, r.metrics)
		r.stores[ownerID] = s
	}
	r.mu.Unlock()

	if s.Loaded() || (s.Refreshed() && !r.Configured()) {
		return s
	}
	ch := r.loads.DoChan(ownerID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.loadTimeout)
		defer cancel()
		return s.Refresh(loadCtx), nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
	}
	return s
}

// Len is the number of owners with a Store.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
