package reporter

// Reporter receives progress and error events from the backup pipeline.
type Reporter interface {
	Info(msg string)
	// Info2 is only rendered at higher verbosity.
	Info2(msg string)
	Warn(msg string)
	Debug(msg string)
	// Error reports a failure. Sinks that count errors increment their counter.
	Error(msg string)
}

// Discard drops every event.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Info(string)  {}
func (discard) Info2(string) {}
func (discard) Warn(string)  {}
func (discard) Debug(string) {}
func (discard) Error(string) {}

type multi []Reporter

// Multi fans every event out to all reporters, in order.
func Multi(reporters ...Reporter) Reporter {
	m := make(multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multi) Info(msg string) {
	for _, r := range m {
		r.Info(msg)
	}
}

func (m multi) Info2(msg string) {
	for _, r := range m {
		r.Info2(msg)
	}
}

func (m multi) Warn(msg string) {
	for _, r := range m {
		r.Warn(msg)
	}
}

func (m multi) Debug(msg string) {
	for _, r := range m {
		r.Debug(msg)
	}
}

func (m multi) Error(msg string) {
	for _, r := range m {
		r.Error(msg)
	}
}
