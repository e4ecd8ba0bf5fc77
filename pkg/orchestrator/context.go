package orchestrator

import (
	"sync"
	"time"

	"github.com/bizflycloud/zfs-backup/pkg/progress"
	"github.com/bizflycloud/zfs-backup/pkg/reporter"
)

// Result is the outcome of one job or sub-volume run.
type Result struct {
	Name          string
	Succeeded     bool
	Elapsed       time.Duration
	FailureReason string
}

// RunContext holds the state of one invocation: the event journal and its
// error counter, the tally and the results. It is also the Reporter every
// component of the run should report to. Safe for concurrent use.
type RunContext struct {
	sink    reporter.Reporter
	journal *reporter.Journal

	mu      sync.Mutex
	stat    progress.Stat
	jobs    []Result
	volumes []Result
}

var _ reporter.Reporter = (*RunContext)(nil)

// NewRunContext returns a RunContext forwarding events to sink.
func NewRunContext(sink reporter.Reporter) *RunContext {
	if sink == nil {
		sink = reporter.Discard
	}
	return &RunContext{sink: sink, journal: reporter.NewJournal()}
}

func (rc *RunContext) Info(msg string) {
	rc.sink.Info(msg)
	rc.journal.Info(msg)
}

func (rc *RunContext) Info2(msg string) {
	rc.sink.Info2(msg)
	rc.journal.Info2(msg)
}

func (rc *RunContext) Warn(msg string) {
	rc.sink.Warn(msg)
	rc.journal.Warn(msg)
}

func (rc *RunContext) Debug(msg string) {
	rc.sink.Debug(msg)
	rc.journal.Debug(msg)
}

func (rc *RunContext) Error(msg string) {
	rc.sink.Error(msg)
	rc.journal.Error(msg)
}

// Errors returns the number of errors reported during the invocation.
func (rc *RunContext) Errors() int {
	return rc.journal.Errors()
}

func (rc *RunContext) Journal() *reporter.Journal {
	return rc.journal
}

func (rc *RunContext) Stat() progress.Stat {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stat
}

// JobResults returns the job results in completion order.
func (rc *RunContext) JobResults() []Result {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]Result(nil), rc.jobs...)
}

// VolumeResults returns the sub-volume results in completion order.
func (rc *RunContext) VolumeResults() []Result {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]Result(nil), rc.volumes...)
}

func (rc *RunContext) addJob(r Result) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.jobs = append(rc.jobs, r)
	rc.stat.Add(progress.Stat{Jobs: 1})
}

func (rc *RunContext) addVolume(r Result) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.volumes = append(rc.volumes, r)
	s := progress.Stat{Volumes: 1}
	if r.Succeeded {
		s.Snapshots = 1
	} else {
		s.Failures = 1
	}
	rc.stat.Add(s)
}
