package repository

import (
	"context"
	"time"

	"PetroPulse/internal/domain/models"
	"PetroPulse/pkg/cache"
	applogger "PetroPulse/pkg/logger"
)

const (
	snapshotKey = "snapshot:latest"
	summaryKey  = "snapshot:summary"
)

// CachedSnapshotPublisher writes the latest snapshot and its summary to a
// shared cache so sibling services can read it without calling back in.
type CachedSnapshotPublisher struct {
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

// NewCachedSnapshotPublisher creates a cache-backed snapshot publisher.
func NewCachedSnapshotPublisher(c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedSnapshotPublisher {
	return &CachedSnapshotPublisher{cache: c, ttl: ttl, l: l}
}

func (p *CachedSnapshotPublisher) PublishSnapshot(ctx context.Context, snap *models.AnalyticsSnapshot) error {
	if err := p.cache.Set(ctx, snapshotKey, snap, p.ttl); err != nil {
		return err
	}
	if err := p.cache.Set(ctx, summaryKey, snap.Summary, p.ttl); err != nil {
		return err
	}

	if p.l != nil {
		p.l.Debug("snapshot published to cache",
			applogger.Int("forecasts", len(snap.Forecasts)),
			applogger.Int("verdicts", len(snap.Anomalies)),
		)
	}
	return nil
}
