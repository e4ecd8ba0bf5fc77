package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bizflycloud/zfs-backup/pkg/mirror"
	"github.com/bizflycloud/zfs-backup/pkg/reporter"
)

// trace records pipeline steps as "<op> <path>".
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (t *trace) add(op, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, op+" "+path)
}

func (t *trace) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.steps...)
}

type fakeStore struct {
	trace *trace
	rep   reporter.Reporter

	mu          sync.Mutex
	volumes     map[string]bool
	failCreate  map[string]bool
	unmounted   map[string]bool
	failSnap    map[string]bool
	panicOn     string
	createCalls int

	// overlap detection for parallel runs
	delay    time.Duration
	inflight sync.Map
	overlap  int32
}

func newFakeStore(t *trace, rep reporter.Reporter) *fakeStore {
	return &fakeStore{
		trace:      t,
		rep:        rep,
		volumes:    map[string]bool{},
		failCreate: map[string]bool{},
		unmounted:  map[string]bool{},
		failSnap:   map[string]bool{},
	}
}

func (s *fakeStore) enter(path string) func() {
	v, _ := s.inflight.LoadOrStore(path, new(int32))
	n := v.(*int32)
	if atomic.AddInt32(n, 1) > 1 {
		atomic.StoreInt32(&s.overlap, 1)
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return func() { atomic.AddInt32(n, -1) }
}

func (s *fakeStore) Exists(_ context.Context, path string) bool {
	defer s.enter(path)()
	s.trace.add("exists", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volumes[path]
}

func (s *fakeStore) Create(_ context.Context, path string) bool {
	defer s.enter(path)()
	s.trace.add("create", path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if path == s.panicOn {
		panic("zfs exploded")
	}
	if s.failCreate[path] {
		s.rep.Error("create " + path + " failed")
		return false
	}
	s.volumes[path] = true
	return true
}

func (s *fakeStore) Mountpoint(_ context.Context, path string) (string, bool) {
	defer s.enter(path)()
	s.trace.add("mountpoint", path)
	if s.unmounted[path] {
		s.rep.Error(path + " has no mountpoint")
		return "", false
	}
	return "/mnt/" + path, true
}

func (s *fakeStore) Snapshot(_ context.Context, path string, days int) bool {
	defer s.enter(path)()
	s.trace.add(fmt.Sprintf("snapshot(%dd)", days), path)
	if s.failSnap[path] {
		s.rep.Error("snapshot " + path + " failed")
		return false
	}
	return true
}

type fakeMirror struct {
	trace *trace
	rep   reporter.Reporter
	fail  map[string]bool // by destination
}

func (m *fakeMirror) Sync(_ context.Context, remote mirror.Remote, source, dest string, _ []string) bool {
	m.trace.add("sync", dest)
	if m.fail[dest] {
		m.rep.Error(fmt.Sprintf("sync %s:%s failed", remote.Host, source))
		return false
	}
	return true
}

type fakeBroker struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (b *fakeBroker) Connect() error    { return nil }
func (b *fakeBroker) Disconnect() error { return nil }
func (b *fakeBroker) String() string    { return "Broker [fake]" }

func (b *fakeBroker) Publish(topic string, payload interface{}) error {
	if b.err != nil {
		return b.err
	}
	buf, ok := payload.([]byte)
	if !ok {
		return errors.New("unexpected payload type")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, buf)
	return nil
}
