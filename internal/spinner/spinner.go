// Package spinner draws a single-line progress indicator on a terminal.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Interval is the time between frames.
const Interval = 80 * time.Millisecond

// Spinner animates a message until stopped. The message can be replaced
// while it runs.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	width   int

	done    chan struct{}
	cleared chan struct{}
	once    sync.Once
}

// Start displays an animated spinner with the given message on w.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.run()
	return s
}

// Update replaces the message shown next to the spinner.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

func (s *Spinner) run() {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-s.done:
			s.clear()
			close(s.cleared)
			return
		case <-ticker.C:
			s.draw(frames[i%len(frames)])
		}
	}
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := frame + " " + s.message
	w := runewidth.StringWidth(line)
	pad := ""
	if w < s.width {
		// a shorter message must overwrite the previous one
		pad = strings.Repeat(" ", s.width-w)
	}
	s.width = max(s.width, w)
	fmt.Fprintf(s.w, "\r%s%s", line, pad) //nolint:errcheck
}

func (s *Spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width > 0 {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width)) //nolint:errcheck
	}
}

// Stop halts the animation and clears the line. It is safe to call more
// than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
	})
	<-s.cleared
}
