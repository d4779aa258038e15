package spinner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateDrawsFramesAndPercentage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSpinner(&buf)
	s.interval = 0

	assert.True(t, s.Update(0.25))
	assert.True(t, s.Update(0.5))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\033[?25l"), "cursor hidden once")
	assert.Equal(t, 1, strings.Count(out, "\033[?25l"))
	assert.Contains(t, out, "\r⣀⣀  25%")
	assert.Contains(t, out, "\r⣄⣀  50%")
}

func TestUpdateIsRateLimited(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSpinner(&buf)
	s.Update(0.1)
	s.Update(0.2)
	s.Update(0.3)
	assert.Equal(t, 1, strings.Count(buf.String(), "%"))
}

func TestFramesWrapAround(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSpinner(&buf)
	s.interval = 0
	for range len(s.frames) + 1 {
		s.Update(0)
	}
	assert.Equal(t, 1, s.index)
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSpinner(&buf)
	s.Cleanup()
	assert.Empty(t, buf.String(), "nothing drawn, nothing to clear")

	s.Update(1)
	s.Cleanup()
	assert.True(t, strings.HasSuffix(buf.String(), "\033[?25h"))
}
