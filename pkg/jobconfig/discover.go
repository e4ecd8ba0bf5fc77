package jobconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bizflycloud/zfs-backup/pkg/reporter"
)

var documentPatterns = []string{"*.yml", "*.yaml"}

// Load reads and validates the job document at path.
func Load(path string) (*Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job document: %w", err)
	}
	return Parse(path, raw)
}

// Discover loads every job document in dir, in lexical file name order.
// Rejected documents are reported as errors and skipped, so one bad document
// never hides the others. The returned error is only set when dir itself
// cannot be read.
func Discover(dir string, rep reporter.Reporter) ([]*Job, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("job directory: %w", err)
	}
	var paths []string
	for _, pattern := range documentPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	var (
		jobs   []*Job
		claims []claim
	)
	for _, path := range paths {
		job, err := Load(path)
		if err != nil {
			rep.Error(err.Error())
			continue
		}
		own := jobClaims(job)
		if mine, theirs, ok := findOverlap(own, claims); ok {
			rep.Error(fmt.Sprintf("job document %s: volume %s overlaps volume %s of %s", path, mine.volume, theirs.volume, theirs.source))
			continue
		}
		claims = append(claims, own...)
		CheckKey(job, rep)
		rep.Debug(fmt.Sprintf("loaded job %s from %s", job.Name, path))
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// CheckKey warns when the job's private key file is missing. ssh will fail
// later if the key is really needed.
func CheckKey(job *Job, rep reporter.Reporter) {
	if job.PrivateKeyPath == "" {
		return
	}
	if _, err := os.Stat(job.PrivateKeyPath); err != nil {
		rep.Warn(fmt.Sprintf("job %s: ssh key %s: %v", job.Name, job.PrivateKeyPath, err))
	}
}

// claim is a volume a job creates. Sub-volumes are also synced into and
// snapshotted, so no volume of another job may live below them.
type claim struct {
	volume string
	sub    bool
	source string
}

func jobClaims(job *Job) []claim {
	claims := []claim{{volume: job.RootVolume(), source: job.Source}}
	for _, sv := range job.SubVolumes {
		claims = append(claims, claim{volume: job.SubVolumePath(sv), sub: true, source: job.Source})
	}
	return claims
}

// findOverlap returns the first claim of own that collides with one of
// taken: the same volume, or a volume below a sub-volume.
func findOverlap(own, taken []claim) (claim, claim, bool) {
	for _, mine := range own {
		for _, theirs := range taken {
			if mine.volume == theirs.volume {
				return mine, theirs, true
			}
			if (mine.sub && below(theirs.volume, mine.volume)) || (theirs.sub && below(mine.volume, theirs.volume)) {
				return mine, theirs, true
			}
		}
	}
	return claim{}, claim{}, false
}

// below reports whether volume a lies under volume b.
func below(a, b string) bool {
	return strings.HasPrefix(a, b+"/")
}
