package jobconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizflycloud/zfs-backup/pkg/reporter"
)

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeDoc(t, dir, "id_ed25519", "key")
	writeDoc(t, dir, "10-bad.yml", "name: bad\nzfsroot: tank\nhost: h\nport: 70000\nvolumes: {}\n")
	writeDoc(t, dir, "20-web.yaml", "name: web\nzfsroot: tank\nhost: web\nssh-key: "+keyPath+"\nvolumes:\n  www:\n    source: /var/www\n    max-days: 3\n")
	writeDoc(t, dir, "30-db.yml", "name: db\nzfsroot: tank\nhost: db\nssh-key: /nonexistent/key\nvolumes: {}\n")
	writeDoc(t, dir, "40-dup.yml", "name: db\nzfsroot: tank\nhost: db2\nvolumes: {}\n")
	writeDoc(t, dir, "README.md", "not a job")

	j := reporter.NewJournal()
	jobs, err := Discover(dir, j)
	require.NoError(t, err)

	require.Len(t, jobs, 2)
	assert.Equal(t, "web", jobs[0].Name)
	assert.Equal(t, "db", jobs[1].Name)

	errs := j.Messages(reporter.LevelError)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "10-bad.yml")
	assert.Contains(t, errs[0], "port")
	assert.Contains(t, errs[1], "40-dup.yml")

	warns := j.Messages(reporter.LevelWarn)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], "/nonexistent/key")
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), reporter.Discard)
	assert.Error(t, err)
}

func TestLoadUnreadable(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestDiscoverOverlappingVolumes(t *testing.T) {
	tests := []struct {
		name     string
		first    string
		second   string
		wantJobs int
	}{
		{
			name:     "root of one job is a sub-volume of another",
			first:    "name: a\nzfsroot: tank\nhost: h1\nvolumes:\n  b:\n    source: /b\n    max-days: 1\n",
			second:   "name: b\nzfsroot: tank/a\nhost: h2\nvolumes: {}\n",
			wantJobs: 1,
		},
		{
			name:     "sub-volume of one job is a sub-volume of another",
			first:    "name: b\nzfsroot: tank/a\nhost: h2\nvolumes: {}\n",
			second:   "name: a\nzfsroot: tank\nhost: h1\nvolumes:\n  b:\n    source: /b\n    max-days: 1\n",
			wantJobs: 1,
		},
		{
			name:     "job nested below a sub-volume",
			first:    "name: a\nzfsroot: tank\nhost: h1\nvolumes:\n  b:\n    source: /b\n    max-days: 1\n",
			second:   "name: c\nzfsroot: tank/a/b\nhost: h2\nvolumes:\n  www:\n    source: /www\n    max-days: 1\n",
			wantJobs: 1,
		},
		{
			name:     "job nested below a root volume",
			first:    "name: a\nzfsroot: tank\nhost: h1\nvolumes:\n  www:\n    source: /www\n    max-days: 1\n",
			second:   "name: b\nzfsroot: tank/a\nhost: h2\nvolumes:\n  www:\n    source: /www\n    max-days: 1\n",
			wantJobs: 2,
		},
		{
			name:     "sibling jobs sharing a prefix",
			first:    "name: web\nzfsroot: tank\nhost: h1\nvolumes:\n  www:\n    source: /www\n    max-days: 1\n",
			second:   "name: web2\nzfsroot: tank\nhost: h2\nvolumes:\n  www:\n    source: /www\n    max-days: 1\n",
			wantJobs: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeDoc(t, dir, "1.yml", tt.first)
			writeDoc(t, dir, "2.yml", tt.second)

			j := reporter.NewJournal()
			jobs, err := Discover(dir, j)
			require.NoError(t, err)
			assert.Len(t, jobs, tt.wantJobs)

			errs := j.Messages(reporter.LevelError)
			if tt.wantJobs == 2 {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "2.yml")
			assert.Contains(t, errs[0], "overlaps")
		})
	}
}
