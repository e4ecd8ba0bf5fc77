package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelInfo2
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelInfo2:
		return "INFO2"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}

	panic(fmt.Sprintf("unknown level %d", l))
}

type Event struct {
	Time    time.Time
	Level   Level
	Message string
}

// Journal is an append-only, in-memory event log with an error counter.
// It is safe for concurrent use.
type Journal struct {
	mu     sync.Mutex
	events []Event
	errors int
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) append(l Level, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, Event{Time: time.Now(), Level: l, Message: msg})
	if l == LevelError {
		j.errors++
	}
}

func (j *Journal) Info(msg string)  { j.append(LevelInfo, msg) }
func (j *Journal) Info2(msg string) { j.append(LevelInfo2, msg) }
func (j *Journal) Warn(msg string)  { j.append(LevelWarn, msg) }
func (j *Journal) Debug(msg string) { j.append(LevelDebug, msg) }
func (j *Journal) Error(msg string) { j.append(LevelError, msg) }

// Errors returns the number of Error events recorded so far.
func (j *Journal) Errors() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errors
}

// Events returns a copy of the recorded events.
func (j *Journal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// Messages returns the messages recorded at level l.
func (j *Journal) Messages(l Level) []string {
	var out []string
	for _, e := range j.Events() {
		if e.Level == l {
			out = append(out, e.Message)
		}
	}
	return out
}

// WriteTo dumps the journal, one event per line.
func (j *Journal) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range j.Events() {
		n, err := fmt.Fprintf(w, "%s [%s] %s\n", e.Time.Format(timeLayout), e.Level, e.Message)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
