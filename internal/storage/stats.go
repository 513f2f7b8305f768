package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hyperjump/quanhday/internal/models"
)

// Stats summarizes a store for the status command.
type Stats struct {
	Locations int   `json:"locations"`
	Events    int   `json:"events"`
	DiskBytes int64 `json:"disk_bytes"`
}

// CollectStats counts locations and events with a start time and sums the on-disk size of paths.
// Paths may be files or directories; missing paths count as zero.
func CollectStats(ctx context.Context, store Store, paths ...string) (*Stats, error) {
	all := GeohashRange("0", "~")
	locs, err := store.Query(ctx, models.CollectionLocations, all)
	if err != nil {
		return nil, err
	}
	events, err := store.Query(ctx, models.CollectionEvents, RangeFilter{Field: FieldStartAt})
	if err != nil {
		return nil, err
	}
	size, err := DiskUsageBytes(paths...)
	if err != nil {
		return nil, err
	}
	return &Stats{Locations: len(locs), Events: len(events), DiskBytes: size}, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Directories are summed recursively. Missing paths and ":memory:" contribute 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" || p == ":memory:" {
			continue
		}
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.Walk(p, func(_ string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				total += fi.Size()
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
