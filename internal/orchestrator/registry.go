package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults for artifact residency and the background sweep cadence.
const (
	DefaultArtifactTTL   = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Registry is the concurrency-safe, bounded-lifetime mapping from opaque
// download ids to finalized artifacts. Entries are single-use: once taken,
// the id can never be redeemed again. Entries that outlive the TTL are
// evicted by Sweep, which also deletes the artifact's workspace directory.
type Registry struct {
	mu    sync.Mutex
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

// NewRegistry constructs a Registry with a default in-memory store.
// If ttl <= 0, DefaultArtifactTTL is used.
func NewRegistry(ttl time.Duration, log *slog.Logger) *Registry {
	return NewRegistryWithStore(NewInMemoryStore(), ttl, log)
}

// NewRegistryWithStore constructs a Registry backed by the given Store.
// Useful for testing or for plugging in a different backend.
func NewRegistryWithStore(store Store, ttl time.Duration, log *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultArtifactTTL
	}
	return &Registry{store: store, ttl: ttl, now: time.Now, log: log}
}

// Put registers a finalized artifact and returns its freshly generated
// download id.
func (r *Registry) Put(filePath, filename string) string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store.Set(id, PendingDownload{
		FilePath:  filePath,
		Filename:  filename,
		CreatedAt: r.now(),
	})
	return id
}

// Take redeems an id. The entry is removed, so a second Take on the same id
// reports not found. Deleting the backing workspace is the caller's job,
// after the bytes have been delivered.
func (r *Registry) Take(id string) (PendingDownload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.store.Get(id)
	if !ok {
		return PendingDownload{}, false
	}
	r.store.Delete(id)
	return d, true
}

// Len returns the number of live entries. Used for metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.store.List())
}

// Sweep evicts every entry older than the TTL and deletes its workspace
// directory, best-effort. Returns the number of evicted entries.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []PendingDownload
	for id, d := range r.store.List() {
		if d.CreatedAt.Before(cutoff) {
			r.store.Delete(id)
			expired = append(expired, d)
		}
	}
	r.mu.Unlock()

	// Filesystem work happens outside the lock.
	for _, d := range expired {
		RemoveWorkspace(d.FilePath, r.log)
	}
	return len(expired)
}

// Run sweeps on a fixed interval until ctx is cancelled. If interval <= 0,
// DefaultSweepInterval is used.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("expired artifacts swept", slog.Int("count", n))
			}
		}
	}
}

// RemoveWorkspace recursively deletes the workspace directory containing the
// given artifact path. Failures are logged and swallowed; cleanup must never
// mask the primary outcome.
func RemoveWorkspace(filePath string, log *slog.Logger) {
	dir := filepath.Dir(filePath)
	if err := os.RemoveAll(dir); err != nil {
		log.Warn("workspace cleanup failed", slog.String("dir", dir), slog.String("error", err.Error()))
	}
}
