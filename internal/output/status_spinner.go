// internal/output/status_spinner.go
package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var statusSpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StatusSpinner shows an animated line while waiting for confirmation.
// A disabled spinner accepts every call and draws nothing, so callers need no mode checks.
type StatusSpinner struct {
	out      io.Writer
	interval time.Duration
	disabled bool

	mu       sync.Mutex
	frameIdx int
	message  string
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// NewStatusSpinner creates a spinner for the logger's error stream.
// It is disabled in JSON mode.
func NewStatusSpinner(l *Logger) *StatusSpinner {
	return &StatusSpinner{
		out:      l.errOut,
		interval: 100 * time.Millisecond,
		disabled: l.jsonMode,
	}
}

// Start begins the spinner animation with the given message.
func (s *StatusSpinner) Start(message string) {
	s.mu.Lock()
	if s.running || s.disabled {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.message = message
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		defer close(s.done)

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.render()
			}
		}
	}()
}

// Update changes the spinner message.
func (s *StatusSpinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	running := s.running
	s.mu.Unlock()
	if running {
		s.render()
	}
}

// Stop stops the spinner and clears the line.
func (s *StatusSpinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	<-s.done
	fmt.Fprintf(s.out, "\r%80s\r", "")
}

func (s *StatusSpinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(s.out, "\r%s %s          ", statusSpinnerFrames[s.frameIdx], s.message)
	s.frameIdx = (s.frameIdx + 1) % len(statusSpinnerFrames)
}
