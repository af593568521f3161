package config

import (
	"context"
	"os"
	"time"
)

// CatalogWatcher polls catalog.yaml and hands every successfully parsed
// revision to OnUpdate. Parse failures keep the previous catalog in effect.
type CatalogWatcher struct {
	Path     string
	Interval time.Duration
	OnUpdate func(*CatalogConfig)
	OnError  func(error)
}

// Start loads the catalog once, then polls its modification time until ctx ends.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	if w.Path == "" {
		w.Path = "configs/catalog.yaml"
	}
	if w.Interval <= 0 {
		w.Interval = 30 * time.Second
	}

	cfg, err := LoadCatalog(w.Path)
	if err != nil {
		return err
	}
	w.update(cfg)

	info, err := os.Stat(w.Path)
	if err != nil {
		return err
	}

	go w.loop(ctx, info.ModTime())
	return nil
}

func (w *CatalogWatcher) loop(ctx context.Context, lastMod time.Time) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.Path)
			if err != nil {
				continue // file is being replaced
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()

			cfg, err := LoadCatalog(w.Path)
			if err != nil {
				if w.OnError != nil {
					w.OnError(err)
				}
				continue
			}
			w.update(cfg)
		}
	}
}

func (w *CatalogWatcher) update(cfg *CatalogConfig) {
	if w.OnUpdate != nil {
		w.OnUpdate(cfg)
	}
}
