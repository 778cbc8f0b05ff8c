package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFound(nil, "no chapters for %s", "B1").WithBook("B1")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrTimeout)

	wrapped := fmt.Errorf("fetch: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestError_Message(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := Encoding(cause, "ffmpeg failed").WithBook("B1").WithSegment(3)

	assert.Equal(t, "encoding [book B1] [segment 3]: ffmpeg failed: exit status 1", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestError_WithersCopy(t *testing.T) {
	base := Filesystem(nil, "disk full")
	scoped := base.WithSegment(2).WithDetail("ENOSPC")

	assert.Equal(t, 0, base.Segment)
	assert.Empty(t, base.Detail)
	assert.Equal(t, 2, scoped.Segment)
	assert.Equal(t, "ENOSPC", scoped.Detail)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", fmt.Errorf("boom"), 1},
		{"invalid metadata", InvalidMetadata(nil, "bad"), 2},
		{"not found", NotFound(nil, "missing"), 3},
		{"service unavailable", ServiceUnavailable(nil, "down"), 4},
		{"timeout", Timeout(context.DeadlineExceeded, "slow"), 5},
		{"encoding", Encoding(nil, "ffmpeg"), 6},
		{"filesystem", fmt.Errorf("wrap: %w", Filesystem(nil, "perm")), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestCodeOf(t *testing.T) {
	var target *Error
	err := fmt.Errorf("outer: %w", Timeout(nil, "deadline"))

	require.True(t, As(err, &target))
	assert.Equal(t, CodeTimeout, CodeOf(err))
	assert.Equal(t, Code(""), CodeOf(fmt.Errorf("plain")))
}
