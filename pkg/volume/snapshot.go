package volume

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const snapshotTimeLayout = "2006-01-02_15.04.05"

var snapshotNameRe = regexp.MustCompile(`^(.+)@(\d{4}-\d{2}-\d{2}_\d{2}\.\d{2}\.\d{2})--(\d+)d$`)

// SnapshotName returns "<path>@<UTC timestamp>--<days>d". The retention tag
// is read by the external pruning job.
func SnapshotName(path string, t time.Time, retentionDays int) string {
	return fmt.Sprintf("%s@%s--%dd", path, t.UTC().Format(snapshotTimeLayout), retentionDays)
}

type Snapshot struct {
	Name          string
	Volume        string
	Created       time.Time
	RetentionDays int
}

func (s Snapshot) Expires() time.Time {
	return s.Created.AddDate(0, 0, s.RetentionDays)
}

// ParseSnapshotName parses a name produced by SnapshotName.
func ParseSnapshotName(name string) (Snapshot, error) {
	m := snapshotNameRe.FindStringSubmatch(name)
	if m == nil {
		return Snapshot{}, fmt.Errorf("snapshot %q: unrecognized name", name)
	}
	created, err := time.ParseInLocation(snapshotTimeLayout, m[2], time.UTC)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %q: %w", name, err)
	}
	days, err := strconv.Atoi(m[3])
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %q: %w", name, err)
	}
	return Snapshot{Name: name, Volume: m[1], Created: created, RetentionDays: days}, nil
}
