package volume

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/clock"

	"github.com/bizflycloud/zfs-backup/pkg/reporter"
	"github.com/bizflycloud/zfs-backup/pkg/runner"
)

const DefaultBinary = "zfs"

var _ Store = (*ZFS)(nil)

// ZFS implements Store by invoking the zfs command line tool.
type ZFS struct {
	binary string
	runner runner.Runner
	rep    reporter.Reporter
	clock  clock.Clock
}

type Option func(z *ZFS)

func WithBinary(binary string) Option {
	return func(z *ZFS) {
		if binary != "" {
			z.binary = binary
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(z *ZFS) {
		z.clock = c
	}
}

func NewZFS(r runner.Runner, rep reporter.Reporter, opts ...Option) *ZFS {
	z := &ZFS{
		binary: DefaultBinary,
		runner: r,
		rep:    rep,
		clock:  clock.WallClock,
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

func (z *ZFS) run(ctx context.Context, args ...string) runner.Result {
	argv := append([]string{z.binary}, args...)
	return z.runner.Run(ctx, argv, runner.Options{Capture: true})
}

func (z *ZFS) fail(what, path string, res runner.Result) {
	msg := fmt.Sprintf("%s %s failed with exit code %d", what, path, res.ExitCode)
	if s := strings.TrimSpace(res.Stderr); s != "" {
		msg += ": " + s
	}
	z.rep.Error(msg)
}

// Exists only matches the exact name: zfs may answer with another dataset.
func (z *ZFS) Exists(ctx context.Context, path string) bool {
	res := z.run(ctx, "list", "-H", "-o", "name", path)
	if !res.Success() {
		z.rep.Debug(fmt.Sprintf("volume %s not found (exit code %d)", path, res.ExitCode))
		return false
	}
	if name := strings.TrimSpace(res.Stdout); name != path {
		z.rep.Debug(fmt.Sprintf("volume %s not found, zfs answered %q", path, name))
		return false
	}
	return true
}

func (z *ZFS) Create(ctx context.Context, path string) bool {
	res := z.run(ctx, "create", path)
	if !res.Success() {
		z.fail("create volume", path, res)
		return false
	}
	return true
}

func (z *ZFS) Mountpoint(ctx context.Context, path string) (string, bool) {
	res := z.run(ctx, "list", "-H", "-o", "mountpoint", path)
	if !res.Success() {
		z.fail("query mountpoint of", path, res)
		return "", false
	}
	mp := strings.TrimSpace(res.Stdout)
	if !strings.HasPrefix(mp, "/") {
		z.rep.Error(fmt.Sprintf("volume %s has no mountpoint (%q)", path, mp))
		return "", false
	}
	return mp, true
}

func (z *ZFS) Snapshot(ctx context.Context, path string, retentionDays int) bool {
	name := SnapshotName(path, z.clock.Now(), retentionDays)
	res := z.run(ctx, "snapshot", name)
	if !res.Success() {
		z.fail("snapshot", name, res)
		return false
	}
	z.rep.Info2("created snapshot " + name)
	return true
}

// ListSnapshots returns the snapshots of path whose names follow the
// SnapshotName scheme. Foreign snapshots are skipped.
func (z *ZFS) ListSnapshots(ctx context.Context, path string) ([]Snapshot, bool) {
	res := z.run(ctx, "list", "-H", "-t", "snapshot", "-o", "name", "-d", "1", path)
	if !res.Success() {
		z.fail("list snapshots of", path, res)
		return nil, false
	}
	var snaps []Snapshot
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s, err := ParseSnapshotName(line)
		if err != nil {
			z.rep.Debug(err.Error())
			continue
		}
		snaps = append(snaps, s)
	}
	return snaps, true
}
