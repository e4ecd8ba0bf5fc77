package volume

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizflycloud/zfs-backup/pkg/reporter"
	"github.com/bizflycloud/zfs-backup/pkg/runner"
)

func answer(code int, stdout, stderr string) *runner.Fake {
	return &runner.Fake{Handler: func([]string) runner.Result {
		return runner.Result{ExitCode: code, Stdout: stdout, Stderr: stderr}
	}}
}

func TestZFS_Exists(t *testing.T) {
	tests := []struct {
		name   string
		fake   *runner.Fake
		path   string
		want   bool
		errors int
	}{
		{"exact match", answer(0, "pool/a\n", ""), "pool/a", true, 0},
		{"child dataset is not a match", answer(0, "pool/a/b\n", ""), "pool/a", false, 0},
		{"missing dataset", answer(1, "", "cannot open 'pool/a': dataset does not exist"), "pool/a", false, 0},
		{"launch failure", answer(runner.LaunchFailed, "", ""), "pool/a", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := reporter.NewJournal()
			z := NewZFS(tt.fake, j)
			assert.Equal(t, tt.want, z.Exists(context.Background(), tt.path))
			assert.Equal(t, []string{"zfs list -H -o name " + tt.path}, tt.fake.CommandLines())
			assert.Equal(t, tt.errors, j.Errors())
		})
	}
}

func TestZFS_Create(t *testing.T) {
	j := reporter.NewJournal()
	f := answer(0, "", "")
	assert.True(t, NewZFS(f, j, WithBinary("/sbin/zfs")).Create(context.Background(), "pool/a"))
	assert.Equal(t, []string{"/sbin/zfs create pool/a"}, f.CommandLines())
	assert.Zero(t, j.Errors())

	j = reporter.NewJournal()
	f = answer(1, "", "cannot create 'pool/a': permission denied\n")
	assert.False(t, NewZFS(f, j).Create(context.Background(), "pool/a"))
	require.Equal(t, 1, j.Errors())
	assert.Equal(t, "create volume pool/a failed with exit code 1: cannot create 'pool/a': permission denied",
		j.Messages(reporter.LevelError)[0])
}

func TestZFS_Mountpoint(t *testing.T) {
	tests := []struct {
		name   string
		fake   *runner.Fake
		want   string
		wantOK bool
	}{
		{"mounted", answer(0, "/mnt/pool/a\n", ""), "/mnt/pool/a", true},
		{"unmounted", answer(0, "none\n", ""), "", false},
		{"legacy", answer(0, "legacy\n", ""), "", false},
		{"query failed", answer(1, "", "dataset does not exist"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := reporter.NewJournal()
			mp, ok := NewZFS(tt.fake, j).Mountpoint(context.Background(), "pool/a")
			assert.Equal(t, tt.want, mp)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, []string{"zfs list -H -o mountpoint pool/a"}, tt.fake.CommandLines())
			if !tt.wantOK {
				assert.Equal(t, 1, j.Errors())
			}
		})
	}
}

func TestZFS_Snapshot(t *testing.T) {
	clk := testclock.NewClock(time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC))
	j := reporter.NewJournal()
	f := answer(0, "", "")
	z := NewZFS(f, j, WithClock(clk))

	assert.True(t, z.Snapshot(context.Background(), "pool/job/vol", 14))
	assert.Equal(t, [][]string{{"zfs", "snapshot", "pool/job/vol@2024-03-01_10.15.30--14d"}}, f.Calls())

	f = answer(2, "", "out of space")
	z = NewZFS(f, j, WithClock(clk))
	assert.False(t, z.Snapshot(context.Background(), "pool/job/vol", 14))
	assert.Equal(t, 1, j.Errors())
}

func TestZFS_ListSnapshots(t *testing.T) {
	out := "pool/job/vol@2024-03-01_10.15.30--14d\n" +
		"pool/job/vol@manual\n" +
		"pool/job/vol@2024-03-02_10.15.30--7d\n"
	f := answer(0, out, "")
	snaps, ok := NewZFS(f, reporter.Discard).ListSnapshots(context.Background(), "pool/job/vol")
	require.True(t, ok)
	require.Len(t, snaps, 2)
	assert.Equal(t, 14, snaps[0].RetentionDays)
	assert.Equal(t, 7, snaps[1].RetentionDays)
	assert.Equal(t, []string{"zfs list -H -t snapshot -o name -d 1 pool/job/vol"}, f.CommandLines())
}

type memStore struct {
	volumes map[string]bool
	creates int
}

func (m *memStore) Exists(_ context.Context, path string) bool { return m.volumes[path] }

func (m *memStore) Create(_ context.Context, path string) bool {
	m.creates++
	m.volumes[path] = true
	return true
}

func (m *memStore) Mountpoint(context.Context, string) (string, bool) { return "", false }
func (m *memStore) Snapshot(context.Context, string, int) bool        { return false }

func TestEnsureVolumeIsIdempotent(t *testing.T) {
	s := &memStore{volumes: map[string]bool{}}
	ctx := context.Background()

	assert.True(t, EnsureVolume(ctx, s, reporter.Discard, "pool/job"))
	assert.True(t, EnsureVolume(ctx, s, reporter.Discard, "pool/job"))
	assert.Equal(t, 1, s.creates)
}

func TestEnsureVolumeWithZFS(t *testing.T) {
	created := false
	f := &runner.Fake{Handler: func(argv []string) runner.Result {
		switch argv[1] {
		case "list":
			if created {
				return runner.Result{Stdout: "pool/job\n"}
			}
			return runner.Result{ExitCode: 1}
		case "create":
			created = true
		}
		return runner.Result{}
	}}
	z := NewZFS(f, reporter.Discard)
	ctx := context.Background()

	assert.True(t, EnsureVolume(ctx, z, reporter.Discard, "pool/job"))
	assert.True(t, EnsureVolume(ctx, z, reporter.Discard, "pool/job"))
	assert.Equal(t, []string{
		"zfs list -H -o name pool/job",
		"zfs create pool/job",
		"zfs list -H -o name pool/job",
	}, f.CommandLines())
}
