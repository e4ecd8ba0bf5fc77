package orchestrator

import (
	"errors"

	"github.com/juju/clock"

	"github.com/bizflycloud/zfs-backup/pkg/broker"
	"github.com/bizflycloud/zfs-backup/pkg/mirror"
	"github.com/bizflycloud/zfs-backup/pkg/volume"
)

type Option func(o *Orchestrator) error

func WithStore(s volume.Store) Option {
	return func(o *Orchestrator) error {
		o.store = s
		return nil
	}
}

func WithMirror(m mirror.Mirror) Option {
	return func(o *Orchestrator) error {
		o.mirror = m
		return nil
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) error {
		if c == nil {
			return errors.New("nil clock")
		}
		o.clock = c
		return nil
	}
}

// WithParallel sets how many jobs may run at once. 1 runs everything
// sequentially.
func WithParallel(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return errors.New("parallel must be at least 1")
		}
		o.parallel = n
		return nil
	}
}

// WithBroker publishes job and run results to topic.
func WithBroker(b broker.Broker, topic string) Option {
	return func(o *Orchestrator) error {
		if topic == "" {
			return errors.New("empty broker topic")
		}
		o.broker = b
		o.topic = topic
		return nil
	}
}

func WithMachineID(id string) Option {
	return func(o *Orchestrator) error {
		o.machineID = id
		return nil
	}
}
