package logger

import "github.com/harrison/bucketsort/internal/models"

// Sink is the set of methods every bucketsort logger implements.
type Sink interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogRunStart(runID, source, output string)
	LogOutcome(outcome models.Outcome)
	LogSummary(summary models.RunSummary)
}

// MultiLogger fans every call out to several sinks, in order.
type MultiLogger struct {
	sinks []Sink
}

// NewMultiLogger creates a MultiLogger. Nil sinks are dropped.
func NewMultiLogger(sinks ...Sink) *MultiLogger {
	m := &MultiLogger{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiLogger) LogDebug(message string) {
	for _, s := range m.sinks {
		s.LogDebug(message)
	}
}

func (m *MultiLogger) LogInfo(message string) {
	for _, s := range m.sinks {
		s.LogInfo(message)
	}
}

func (m *MultiLogger) LogWarn(message string) {
	for _, s := range m.sinks {
		s.LogWarn(message)
	}
}

func (m *MultiLogger) LogError(message string) {
	for _, s := range m.sinks {
		s.LogError(message)
	}
}

func (m *MultiLogger) LogRunStart(runID, source, output string) {
	for _, s := range m.sinks {
		s.LogRunStart(runID, source, output)
	}
}

func (m *MultiLogger) LogOutcome(outcome models.Outcome) {
	for _, s := range m.sinks {
		s.LogOutcome(outcome)
	}
}

func (m *MultiLogger) LogSummary(summary models.RunSummary) {
	for _, s := range m.sinks {
		s.LogSummary(summary)
	}
}
