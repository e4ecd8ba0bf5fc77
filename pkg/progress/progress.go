package progress

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stat tallies the work done by one backup run.
type Stat struct {
	Jobs      uint64
	Volumes   uint64
	Snapshots uint64
	Failures  uint64
}

func (s *Stat) Add(other Stat) {
	s.Jobs += other.Jobs
	s.Volumes += other.Volumes
	s.Snapshots += other.Snapshots
	s.Failures += other.Failures
}

func (s Stat) String() string {
	return fmt.Sprintf("Stat(%s jobs, %s volumes, %s snapshots, %s failures)",
		humanize.Comma(int64(s.Jobs)),
		humanize.Comma(int64(s.Volumes)),
		humanize.Comma(int64(s.Snapshots)),
		humanize.Comma(int64(s.Failures)))
}
