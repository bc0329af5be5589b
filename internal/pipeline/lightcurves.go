package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/store"
	"go-instance-catalog/internal/variability"
)

// Light curve stores live for the whole process and are shared by every job
// that names the same directory and database.
var (
	lcMu     sync.Mutex
	lcStores = make(map[model.LightCurveConfig]*variability.Store)
)

// DefaultLightCurveDir is used by jobs that configure no light curve source.
var DefaultLightCurveDir = "lightcurves"

// LightCurveStore returns the shared store for cfg, creating it on first use.
func LightCurveStore(cfg model.LightCurveConfig) (*variability.Store, error) {
	if cfg.Dir == "" && cfg.DB == "" {
		cfg.Dir = DefaultLightCurveDir
	}

	lcMu.Lock()
	defer lcMu.Unlock()
	if s, ok := lcStores[cfg]; ok {
		return s, nil
	}

	var loaders []variability.Loader
	if cfg.DB != "" {
		lcdb, err := store.OpenLightCurveDB(cfg.DB)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, lcdb)
	}
	if cfg.Dir != "" {
		loaders = append(loaders, variability.DirLoader{Root: cfg.Dir})
	}

	s := variability.NewStore(firstFound(loaders))
	lcStores[cfg] = s
	return s, nil
}

// firstFound tries loaders in order, moving on only when a key is missing.
func firstFound(loaders []variability.Loader) variability.Loader {
	if len(loaders) == 1 {
		return loaders[0]
	}
	return variability.LoaderFunc(func(ctx context.Context, key string) (*variability.Table, error) {
		var lastErr error
		for _, l := range loaders {
			t, err := l.Load(ctx, key)
			if err == nil {
				return t, nil
			}
			if !errors.Is(err, variability.ErrNoData) && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			lastErr = err
		}
		return nil, lastErr
	})
}
