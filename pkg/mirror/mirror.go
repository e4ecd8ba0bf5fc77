package mirror

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/bizflycloud/zfs-backup/pkg/reporter"
	"github.com/bizflycloud/zfs-backup/pkg/runner"
)

const (
	DefaultBinary      = "rsync"
	DefaultRemoteShell = "ssh"
)

// Remote is the ssh endpoint data is pulled from.
type Remote struct {
	Host string
	Port int
	// PrivateKeyPath is optional, ssh falls back to its agent and defaults.
	PrivateKeyPath string
}

// Mirror replicates a remote directory tree into a local directory.
type Mirror interface {
	Sync(ctx context.Context, remote Remote, source, dest string, excludes []string) bool
}

var _ Mirror = (*Rsync)(nil)

type Rsync struct {
	binary   string
	shell    string
	progress bool
	runner   runner.Runner
	rep      reporter.Reporter
}

type Option func(r *Rsync)

func WithBinary(binary string) Option {
	return func(r *Rsync) {
		if binary != "" {
			r.binary = binary
		}
	}
}

func WithRemoteShell(shell string) Option {
	return func(r *Rsync) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// WithProgress streams rsync output with overall progress instead of
// capturing it. Meant for interactive terminals only.
func WithProgress(progress bool) Option {
	return func(r *Rsync) {
		r.progress = progress
	}
}

func NewRsync(r runner.Runner, rep reporter.Reporter, opts ...Option) *Rsync {
	m := &Rsync{
		binary: DefaultBinary,
		shell:  DefaultRemoteShell,
		runner: r,
		rep:    rep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// dirPath returns p with exactly one trailing slash, so rsync always copies
// the contents of the directory.
func dirPath(p string) string {
	return strings.TrimRight(p, "/") + "/"
}

// Command returns the rsync argv for one sync.
func (m *Rsync) Command(remote Remote, source, dest string, excludes []string) []string {
	shell := []string{m.shell, "-o", "StrictHostKeyChecking=accept-new", "-p", strconv.Itoa(remote.Port)}
	if remote.PrivateKeyPath != "" {
		shell = append(shell, "-i", remote.PrivateKeyPath)
	}

	argv := []string{m.binary, "-e", shellquote.Join(shell...), "--delete", "--archive"}
	if m.progress {
		argv = append(argv, "--info=progress2", "--no-inc-recursive")
	}
	for _, p := range excludes {
		argv = append(argv, "--exclude", p)
	}
	return append(argv, remote.Host+":"+dirPath(source), dirPath(dest))
}

func (m *Rsync) Sync(ctx context.Context, remote Remote, source, dest string, excludes []string) bool {
	from := remote.Host + ":" + dirPath(source)
	m.rep.Info2(fmt.Sprintf("syncing %s into %s", from, dirPath(dest)))

	res := m.runner.Run(ctx, m.Command(remote, source, dest, excludes), runner.Options{Capture: !m.progress})
	if !res.Success() {
		msg := fmt.Sprintf("sync %s -> %s failed with exit code %d", from, dirPath(dest), res.ExitCode)
		if s := strings.TrimSpace(res.Stderr); s != "" {
			msg += ": " + s
		}
		m.rep.Error(msg)
		return false
	}
	return true
}
