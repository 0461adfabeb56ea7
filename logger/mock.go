package logger

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// Entry is one message logged through a MockLogger.
type Entry struct {
	Level         Level
	Msg           string
	KeysAndValues []any
}

// MockLogger is a testify mock implementing Logger that accepts every call and keeps the
// logged entries. It reports DebugLevel, so debug-only code paths run under test.
//
// Loggers derived with With share the parent's entries.
type MockLogger struct {
	mock.Mock

	mu      sync.Mutex
	entries []Entry
}

var _ Logger = (*MockLogger)(nil)

// NewPermissiveMockLogger returns a MockLogger with every method stubbed.
func NewPermissiveMockLogger() *MockLogger {
	m := &MockLogger{}
	for _, method := range []string{"Debug", "Info", "Warn", "Error", "Fatal"} {
		m.On(method, mock.Anything, mock.Anything).Return()
	}
	m.On("SetLevel", mock.Anything).Return()
	return m
}

// Entries returns a copy of the entries logged at level or above.
func (m *MockLogger) Entries(level Level) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if e.Level >= level {
			out = append(out, e)
		}
	}
	return out
}

// Logged reports whether msg was logged at exactly level.
func (m *MockLogger) Logged(level Level, msg string) bool {
	for _, e := range m.Entries(level) {
		if e.Level == level && e.Msg == msg {
			return true
		}
	}
	return false
}

func (m *MockLogger) log(level Level, method string, msg string, keysAndValues []any) {
	m.mu.Lock()
	m.entries = append(m.entries, Entry{Level: level, Msg: msg, KeysAndValues: keysAndValues})
	m.mu.Unlock()

	m.MethodCalled(method, msg, keysAndValues)
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.log(DebugLevel, "Debug", msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.log(InfoLevel, "Info", msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.log(WarnLevel, "Warn", msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.log(ErrorLevel, "Error", msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.log(FatalLevel, "Fatal", msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level { return DebugLevel }

// With returns m itself. The attached key-value pairs are not recorded.
func (m *MockLogger) With(...any) Logger { return m }
