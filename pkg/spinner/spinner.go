// Package spinner draws a one line progress animation on a terminal.
package spinner

import (
	"fmt"
	"io"
	"time"
)

const defaultInterval = 100 * time.Millisecond

// Spinner struct holds the spinner state
type Spinner struct {
	w        io.Writer
	frames   []string
	index    int
	interval time.Duration
	last     time.Time
	drawn    bool
}

// NewSpinner creates a spinner drawing to w
func NewSpinner(w io.Writer) *Spinner {
	// braille arrow sequence
	return &Spinner{
		w: w,
		frames: []string{
			"⣀⣀ ",
			"⣄⣀ ",
			"⣤⣀ ",
			"⣦⣄ ",
			"⣶⣤ ",
			"⣿⣦ ",
			"⣿⣷ ",
			"⣿⣿ ",
			"⣿⣿ ",
			"⣷⣿ ",
			"⣦⣿ ",
			"⣤⣷ ",
			"⣄⣦ ",
			"⣀⣤ ",
			"⣀⣄ ",
			"⣀⣀ ",
		},
		interval: defaultInterval,
	}
}

// Update advances the spinner and prints it with the completed fraction.
// Redraws closer together than the spinner interval are skipped. It always
// returns true, so it can serve directly as a progress callback.
func (s *Spinner) Update(fraction float64) bool {
	now := time.Now()
	if s.drawn && now.Sub(s.last) < s.interval {
		return true
	}
	if !s.drawn {
		// Hide cursor
		fmt.Fprint(s.w, "\033[?25l")
	}
	s.drawn = true
	s.last = now

	fmt.Fprintf(s.w, "\r%s%3.0f%%", s.frames[s.index], 100*fraction)

	s.index++
	if s.index >= len(s.frames) {
		s.index = 0
	}
	return true
}

// Cleanup clears the spinner and shows the cursor
func (s *Spinner) Cleanup() {
	if !s.drawn {
		return
	}
	fmt.Fprint(s.w, "\r       \r")
	fmt.Fprint(s.w, "\033[?25h")
	s.drawn = false
}
