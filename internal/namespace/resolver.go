// Package namespace derives and ensures the per-LOB cluster namespace
// from policy (§4.2), keeping namespace derivation itself synchronous and
// non-blocking per §9's anti-pattern note.
package namespace

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/contoso-cloud/testexec-controlplane/internal/cluster"
	"github.com/contoso-cloud/testexec-controlplane/internal/policy"
)

// compiledDefaultPrefix is the fallback used before the first successful
// background refresh, or after a refresh failure — §9 requires the sync
// path never block on the admin-config cache.
const compiledDefaultPrefix = "testexec-"

// Resolver derives the LOB namespace name and ensures it exists on the
// cluster. GetNamespaceForLob is pure and synchronous: it reads a locally
// cached prefix refreshed in the background, never the policy store
// directly, so it can be called from any context without risking a block
// on a concurrent admin-config read.
type Resolver struct {
	backend cluster.Backend
	store   *policy.Store

	prefix atomic.Value // string

	refreshOnce sync.Once
	stop        chan struct{}
}

// NewResolver builds a Resolver. Call Start to begin the background
// prefix refresh; GetNamespaceForLob works (using the compiled default)
// even before the first refresh completes.
func NewResolver(backend cluster.Backend, store *policy.Store) *Resolver {
	r := &Resolver{backend: backend, store: store, stop: make(chan struct{})}
	r.prefix.Store(compiledDefaultPrefix)
	return r
}

// Start launches the background refresh loop. It is idempotent: calling
// it more than once has no additional effect.
func (r *Resolver) Start(ctx context.Context, interval time.Duration) {
	r.refreshOnce.Do(func() {
		go r.refreshLoop(ctx, interval)
	})
}

// Stop ends the background refresh loop.
func (r *Resolver) Stop() {
	close(r.stop)
}

func (r *Resolver) refreshLoop(ctx context.Context, interval time.Duration) {
	r.refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.refresh(ctx)
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Resolver) refresh(ctx context.Context) {
	cfg, err := r.store.GetAdminConfiguration(ctx, true)
	if err != nil {
		klog.Warningf("namespace: refreshing prefix from policy: %v, keeping %q", err, r.prefix.Load())
		return
	}
	if cfg.Cluster.LobNamespacePrefix == "" {
		return
	}
	r.prefix.Store(cfg.Cluster.LobNamespacePrefix)
}

// GetNamespaceForLob derives the namespace name for lobID: prefix +
// lowercase(lobID). It is pure in (prefix, lobID) and never blocks.
func (r *Resolver) GetNamespaceForLob(lobID string) string {
	prefix, _ := r.prefix.Load().(string)
	if prefix == "" {
		prefix = compiledDefaultPrefix
	}
	return prefix + strings.ToLower(lobID)
}

// EnsureNamespaceExists derives the namespace name and creates it on the
// cluster if missing (idempotent).
func (r *Resolver) EnsureNamespaceExists(ctx context.Context, lobID string) (string, error) {
	name := r.GetNamespaceForLob(lobID)
	if err := r.backend.CreateNamespaceIfNotExists(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}
