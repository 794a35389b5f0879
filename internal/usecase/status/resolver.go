// Package status answers "is the channel live" for templates, requests and
// redemptions, with a short cache in front of the platform APIs.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

const DefaultTTL = 30 * time.Second

type cached struct {
	status  domain.StreamStatus
	fetched time.Time
}

type Resolver struct {
	mu       sync.RWMutex
	services map[domain.Platform]domain.StreamStatusService
	cache    map[domain.Platform]cached

	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewResolver(ttl time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		services: make(map[domain.Platform]domain.StreamStatusService),
		cache:    make(map[domain.Platform]cached),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

func (r *Resolver) Set(platform domain.Platform, svc domain.StreamStatusService) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cache, platform)
	if svc == nil {
		delete(r.services, platform)
		return
	}
	r.services[platform] = svc
}

// Status returns the cached status for platform, refreshing it when older
// than the TTL.
func (r *Resolver) Status(ctx context.Context, platform domain.Platform) (domain.StreamStatus, error) {
	r.mu.RLock()
	svc := r.services[platform]
	entry, hit := r.cache[platform]
	r.mu.RUnlock()

	if svc == nil {
		return domain.StreamStatus{}, fmt.Errorf("status: no service for %s", platform)
	}
	if hit && r.ttl > 0 && r.now().Sub(entry.fetched) < r.ttl {
		return entry.status, nil
	}

	st, err := svc.Status(ctx)
	if err != nil {
		return domain.StreamStatus{}, fmt.Errorf("status: %s: %w", platform, err)
	}
	st.Platform = platform

	r.mu.Lock()
	r.cache[platform] = cached{status: st, fetched: r.now()}
	r.mu.Unlock()
	return st, nil
}

// IsLive treats lookup failures as offline.
func (r *Resolver) IsLive(ctx context.Context, platform domain.Platform) bool {
	st, err := r.Status(ctx, platform)
	if err != nil {
		r.logger.Warn("status: live check failed", zap.Error(err))
		return false
	}
	return st.IsLive
}

// Configured reports whether a status service exists for platform.
func (r *Resolver) Configured(platform domain.Platform) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[platform] != nil
}

// For returns a view bound to one platform, usable as the template engine's
// live lookup.
func (r *Resolver) For(platform domain.Platform) *View {
	return &View{r: r, platform: platform}
}

func (r *Resolver) Snapshot(ctx context.Context) []domain.StreamStatus {
	r.mu.RLock()
	platforms := make([]domain.Platform, 0, len(r.services))
	for p := range r.services {
		platforms = append(platforms, p)
	}
	r.mu.RUnlock()

	out := make([]domain.StreamStatus, 0, len(platforms))
	for _, p := range platforms {
		st, err := r.Status(ctx, p)
		if err != nil {
			r.logger.Warn("status: snapshot failed", zap.Error(err))
			continue
		}
		out = append(out, st)
	}
	return out
}

type View struct {
	r        *Resolver
	platform domain.Platform
}

func (v *View) Status(ctx context.Context) (domain.StreamStatus, error) {
	return v.r.Status(ctx, v.platform)
}

// IsLive reports true when no status service is configured, so a bot without
// API credentials never blocks requests.
func (v *View) IsLive(ctx context.Context) bool {
	if !v.r.Configured(v.platform) {
		return true
	}
	return v.r.IsLive(ctx, v.platform)
}
