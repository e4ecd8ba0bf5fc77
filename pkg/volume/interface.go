package volume

import (
	"context"

	"github.com/bizflycloud/zfs-backup/pkg/reporter"
)

// Store is the capability layer over the copy-on-write volume manager.
// Volumes are addressed only by their path, e.g. "pool/backup/host/www".
type Store interface {
	// Exists reports whether the volume at path exists.
	Exists(ctx context.Context, path string) bool

	// Create creates the volume at path.
	Create(ctx context.Context, path string) bool

	// Mountpoint returns the absolute mountpoint of the volume, ok is false
	// when the volume is not mounted.
	Mountpoint(ctx context.Context, path string) (mountpoint string, ok bool)

	// Snapshot records a point-in-time snapshot tagged with a retention in days.
	Snapshot(ctx context.Context, path string, retentionDays int) bool
}

// EnsureVolume creates the volume at path unless it already exists.
func EnsureVolume(ctx context.Context, s Store, rep reporter.Reporter, path string) bool {
	if s.Exists(ctx, path) {
		rep.Debug("volume " + path + " exists")
		return true
	}
	rep.Info2("creating volume " + path)
	return s.Create(ctx, path)
}
