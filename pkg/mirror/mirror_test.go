package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizflycloud/zfs-backup/pkg/reporter"
	"github.com/bizflycloud/zfs-backup/pkg/runner"
)

func TestRsync_Command(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		remote   Remote
		excludes []string
		want     []string
	}{
		{
			name:   "defaults",
			remote: Remote{Host: "web1", Port: 22},
			want: []string{
				"rsync", "-e", "ssh -o StrictHostKeyChecking=accept-new -p 22",
				"--delete", "--archive", "web1:/data/app/", "/mnt/backup/vol/",
			},
		},
		{
			name:     "key and excludes",
			remote:   Remote{Host: "web1", Port: 2222, PrivateKeyPath: "/root/.ssh/backup key"},
			excludes: []string{"*.tmp", "cache/"},
			want: []string{
				"rsync", "-e", "ssh -o StrictHostKeyChecking=accept-new -p 2222 -i '/root/.ssh/backup key'",
				"--delete", "--archive", "--exclude", "*.tmp", "--exclude", "cache/",
				"web1:/data/app/", "/mnt/backup/vol/",
			},
		},
		{
			name:   "progress and custom binaries",
			opts:   []Option{WithProgress(true), WithBinary("/usr/bin/rsync"), WithRemoteShell("/usr/bin/ssh")},
			remote: Remote{Host: "web1", Port: 22},
			want: []string{
				"/usr/bin/rsync", "-e", "/usr/bin/ssh -o StrictHostKeyChecking=accept-new -p 22",
				"--delete", "--archive", "--info=progress2", "--no-inc-recursive",
				"web1:/data/app/", "/mnt/backup/vol/",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRsync(&runner.Fake{}, reporter.Discard, tt.opts...)
			assert.Equal(t, tt.want, m.Command(tt.remote, "/data/app", "/mnt/backup/vol", tt.excludes))
		})
	}
}

func TestRsync_PathNormalization(t *testing.T) {
	f := &runner.Fake{}
	m := NewRsync(f, reporter.Discard)
	remote := Remote{Host: "web1", Port: 22}
	ctx := context.Background()

	require.True(t, m.Sync(ctx, remote, "/data/app/", "/mnt/backup/vol/", nil))
	require.True(t, m.Sync(ctx, remote, "/data/app", "/mnt/backup/vol", nil))
	require.True(t, m.Sync(ctx, remote, "/data/app//", "/mnt/backup/vol//", nil))

	calls := f.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, calls[0], calls[1])
	assert.Equal(t, calls[0], calls[2])
}

func TestRsync_SyncFailure(t *testing.T) {
	tests := []struct {
		name    string
		res     runner.Result
		wantMsg string
	}{
		{
			name:    "stderr attached",
			res:     runner.Result{ExitCode: 255, Stderr: "ssh: connect to host web1 port 22: Connection refused\n"},
			wantMsg: "sync web1:/data/app/ -> /mnt/backup/vol/ failed with exit code 255: ssh: connect to host web1 port 22: Connection refused",
		},
		{
			name:    "empty stderr",
			res:     runner.Result{ExitCode: runner.LaunchFailed},
			wantMsg: "sync web1:/data/app/ -> /mnt/backup/vol/ failed with exit code -1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := reporter.NewJournal()
			f := &runner.Fake{Handler: func([]string) runner.Result { return tt.res }}
			ok := NewRsync(f, j).Sync(context.Background(), Remote{Host: "web1", Port: 22}, "/data/app", "/mnt/backup/vol", nil)
			assert.False(t, ok)
			assert.Equal(t, []string{tt.wantMsg}, j.Messages(reporter.LevelError))
		})
	}
}
