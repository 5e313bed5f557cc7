package pdf

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/arcastone/vault/internal/core/domain"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	mu      sync.Mutex
	tools   map[string]bool
	output  []byte
	err     error
	calls   [][]string
	onRun   func(name string, args []string) error
	inputOK bool
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string{name}, args...))
	m.mu.Unlock()

	for _, a := range args {
		if _, err := os.Stat(a); err == nil {
			m.inputOK = true
		}
	}
	if m.onRun != nil {
		if err := m.onRun(name, args); err != nil {
			return nil, err
		}
	}
	return m.output, m.err
}

func (m *mockRunner) LookPath(name string) (string, error) {
	if m.tools[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

// stubExtractor returns a queue of page sets.
type stubExtractor struct {
	results [][]domain.Page
	calls   int
	inputs  [][]byte
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Extract(_ context.Context, data []byte) ([]domain.Page, error) {
	s.inputs = append(s.inputs, data)
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}
