package machine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ambimix/mixer"
)

// Syncer reloads the mixer catalog.
type Syncer interface {
	Sync(ctx context.Context) ([]mixer.Track, error)
}

// CatalogMonitor periodically resyncs the catalog so tracks added or removed
// by another front end show up in this mixer.
type CatalogMonitor struct {
	interval    time.Duration
	syncer      Syncer
	logger      *slog.Logger
	wg          *sync.WaitGroup
	stopChannel chan struct{}
	stopOnce    sync.Once
}

// NewCatalogMonitor creates a new CatalogMonitor instance. A zero interval
// disables it.
func NewCatalogMonitor(interval time.Duration, syncer Syncer, wg *sync.WaitGroup) *CatalogMonitor {
	return &CatalogMonitor{
		interval:    interval,
		syncer:      syncer,
		logger:      slog.With("component", "catalog-monitor"),
		wg:          wg,
		stopChannel: make(chan struct{}),
	}
}

// Start begins catalog monitoring until ctx is done or Stop is called
func (c *CatalogMonitor) Start(ctx context.Context) {
	if c.interval <= 0 {
		c.logger.Debug("Catalog resync disabled")
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.logger.Info("Starting catalog monitoring", slog.Duration("interval", c.interval))

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		known := -1
		for {
			select {
			case <-ticker.C:
				tracks, err := c.syncer.Sync(ctx)
				if err != nil {
					c.logger.Error("Failed to resync catalog", slog.Any("error", err))
					continue
				}
				if len(tracks) != known {
					c.logger.Debug("Catalog resynced", slog.Int("tracks", len(tracks)))
					known = len(tracks)
				}
			case <-ctx.Done():
				c.logger.Info("Catalog monitoring stopped")
				return
			case <-c.stopChannel:
				c.logger.Info("Catalog monitoring stopped via stop channel")
				return
			}
		}
	}()
}

// Stop stops catalog monitoring
func (c *CatalogMonitor) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChannel)
	})
}
