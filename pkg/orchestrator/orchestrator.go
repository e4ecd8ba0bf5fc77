package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"github.com/bizflycloud/zfs-backup/pkg/broker"
	"github.com/bizflycloud/zfs-backup/pkg/jobconfig"
	"github.com/bizflycloud/zfs-backup/pkg/mirror"
	"github.com/bizflycloud/zfs-backup/pkg/volume"
)

// Orchestrator drives the backup pipeline: for every job it provisions the
// destination volumes, mirrors the remote trees into them and snapshots the
// result. A failing step only stops the sub-volume it belongs to.
type Orchestrator struct {
	store     volume.Store
	mirror    mirror.Mirror
	clock     clock.Clock
	parallel  int
	broker    broker.Broker
	topic     string
	machineID string

	// held per volume path while a step sequence touches it
	locks *kmutex.Kmutex
}

// JobPanic carries a panic raised while running a job on a worker goroutine.
type JobPanic struct {
	Job   string
	Value interface{}
	Stack []byte
}

func (p *JobPanic) Error() string {
	return fmt.Sprintf("job %s: %v", p.Job, p.Value)
}

func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		clock:    clock.WallClock,
		parallel: 1,
		locks:    kmutex.New(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.store == nil {
		return nil, errors.New("no volume store")
	}
	if o.mirror == nil {
		return nil, errors.New("no mirror")
	}
	return o, nil
}

// RunAll runs every job to completion in the given order.
func (o *Orchestrator) RunAll(ctx context.Context, rc *RunContext, jobs []*jobconfig.Job) Result {
	start := o.clock.Now()

	if o.parallel > 1 && len(jobs) > 1 {
		var (
			g      errgroup.Group
			once   sync.Once
			failed *JobPanic
		)
		g.SetLimit(o.parallel)
		for _, job := range jobs {
			job := job
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						once.Do(func() {
							failed = &JobPanic{Job: job.Name, Value: r, Stack: debug.Stack()}
						})
					}
				}()
				o.RunJob(ctx, rc, job)
				return nil
			})
		}
		_ = g.Wait()
		// re-raised on the caller's goroutine so the CLI can recover it
		if failed != nil {
			panic(failed)
		}
	} else {
		for _, job := range jobs {
			o.RunJob(ctx, rc, job)
		}
	}

	res := Result{Name: "run", Succeeded: rc.Errors() == 0, Elapsed: o.since(start)}
	if !res.Succeeded {
		res.FailureReason = fmt.Sprintf("%d error(s) reported", rc.Errors())
	}
	stat := rc.Stat()
	rc.Info(fmt.Sprintf("finished %d job(s) in %s: %s", len(jobs), elapsed(res.Elapsed), stat))

	o.publish(rc, broker.Message{
		EventType:     broker.RunFinished,
		Succeeded:     res.Succeeded,
		Elapsed:       elapsed(res.Elapsed),
		FailureReason: res.FailureReason,
		Jobs:          stat.Jobs,
		Failures:      stat.Failures,
	})
	return res
}

// RunJob ensures the job's root volume, then backs up every sub-volume in
// order. A root volume failure is reported but does not stop the sub-volumes.
func (o *Orchestrator) RunJob(ctx context.Context, rc *RunContext, job *jobconfig.Job) Result {
	start := o.clock.Now()
	rc.Info(fmt.Sprintf("job %s: backing up %d volume(s) from %s", job.Name, len(job.SubVolumes), job.Host))

	res := Result{Name: job.Name, Succeeded: true}
	var reasons []string
	if root := job.RootVolume(); !o.ensureVolume(ctx, rc, root) {
		reasons = append(reasons, "root volume "+root+" unavailable")
	}

	volumes := make([]broker.VolumeStatus, 0, len(job.SubVolumes))
	failed := 0
	for _, sv := range job.SubVolumes {
		r := o.RunSubVolume(ctx, rc, job, sv)
		if !r.Succeeded {
			failed++
		}
		volumes = append(volumes, broker.VolumeStatus{
			Volume:        r.Name,
			Succeeded:     r.Succeeded,
			Elapsed:       elapsed(r.Elapsed),
			FailureReason: r.FailureReason,
		})
	}
	if failed > 0 {
		reasons = append(reasons, fmt.Sprintf("%d of %d volume(s) failed", failed, len(job.SubVolumes)))
	}
	if len(reasons) > 0 {
		res.Succeeded = false
		res.FailureReason = strings.Join(reasons, "; ")
	}
	res.Elapsed = o.since(start)

	if res.Succeeded {
		rc.Info(fmt.Sprintf("job %s: finished in %s", job.Name, elapsed(res.Elapsed)))
	} else {
		rc.Info(fmt.Sprintf("job %s: finished in %s with failures: %s", job.Name, elapsed(res.Elapsed), res.FailureReason))
	}
	rc.addJob(res)

	o.publish(rc, broker.Message{
		EventType:     broker.JobFinished,
		Job:           job.Name,
		Volumes:       volumes,
		Succeeded:     res.Succeeded,
		Elapsed:       elapsed(res.Elapsed),
		FailureReason: res.FailureReason,
	})
	return res
}

// RunSubVolume runs EnsureVolume, Mountpoint, Sync and Snapshot for one
// sub-volume, stopping at the first failing step. The snapshot is only taken
// after a successful sync.
func (o *Orchestrator) RunSubVolume(ctx context.Context, rc *RunContext, job *jobconfig.Job, sv jobconfig.SubVolume) Result {
	path := job.SubVolumePath(sv)
	o.locks.Lock(path)
	defer o.locks.Unlock(path)

	start := o.clock.Now()
	res := Result{Name: path}
	res.FailureReason = o.runSteps(ctx, rc, job, sv, path)
	res.Succeeded = res.FailureReason == ""
	res.Elapsed = o.since(start)

	if res.Succeeded {
		rc.Info(fmt.Sprintf("%s: backed up in %s", path, elapsed(res.Elapsed)))
	} else {
		rc.Info(fmt.Sprintf("%s: %s after %s", path, res.FailureReason, elapsed(res.Elapsed)))
	}
	rc.addVolume(res)
	return res
}

// runSteps returns why the step sequence stopped, or "" when every step
// succeeded.
func (o *Orchestrator) runSteps(ctx context.Context, rc *RunContext, job *jobconfig.Job, sv jobconfig.SubVolume, path string) string {
	if !volume.EnsureVolume(ctx, o.store, rc, path) {
		return "volume could not be created"
	}
	mountpoint, ok := o.store.Mountpoint(ctx, path)
	if !ok {
		return "volume has no mountpoint"
	}
	if !o.mirror.Sync(ctx, job.Remote(), sv.SourcePath, mountpoint, sv.Excludes) {
		return "sync failed"
	}
	if !o.store.Snapshot(ctx, path, sv.MaxAgeDays) {
		return "snapshot failed"
	}
	return ""
}

func (o *Orchestrator) ensureVolume(ctx context.Context, rc *RunContext, path string) bool {
	o.locks.Lock(path)
	defer o.locks.Unlock(path)
	return volume.EnsureVolume(ctx, o.store, rc, path)
}

// publish is best effort: a broker failure never fails the run.
func (o *Orchestrator) publish(rc *RunContext, msg broker.Message) {
	if o.broker == nil {
		return
	}
	msg.MachineID = o.machineID
	msg.CreatedAt = o.clock.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(msg)
	if err != nil {
		rc.Warn(fmt.Sprintf("failed to encode %s notification: %v", msg.EventType, err))
		return
	}
	if err := o.broker.Publish(o.topic, payload); err != nil {
		rc.Warn(fmt.Sprintf("failed to publish %s notification to %s: %v", msg.EventType, o.broker, err))
	}
}

func (o *Orchestrator) since(start time.Time) time.Duration {
	return o.clock.Now().Sub(start)
}

func elapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
