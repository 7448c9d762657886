package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"submission", fmt.Errorf("%w: status 400", ErrSubmission), KindSubmission},
		{"poll", fmt.Errorf("%w: bad json", ErrPoll), KindPoll},
		{"failed", ErrGenerationFailed, KindGenerationFailed},
		{"timed out wraps deadline", fmt.Errorf("%w: job x: %w", ErrTimedOut, context.DeadlineExceeded), KindTimedOut},
		{"download", fmt.Errorf("%w: 404", ErrDownloadFailed), KindDownloadFailed},
		{"dimensions", ErrInvalidDimensions, KindInvalidDimensions},
		{"io", errors.Join(fmt.Errorf("%w: a", ErrIOFailure), fmt.Errorf("%w: b", ErrIOFailure)), KindIOFailure},
		{"invalid request", ErrInvalidRequest, KindInvalidRequest},
		{"canceled", fmt.Errorf("waiting: %w", context.Canceled), KindCanceled},
		{"bare deadline", context.DeadlineExceeded, KindTimedOut},
		{"unknown", errors.New("boom"), KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestFirstResultSkipsBlank(t *testing.T) {
	job := GenerationJob{Status: JobStatusComplete, ResultURLs: []string{"", "  ", "https://x/a.png"}}
	url, ok := job.FirstResult()
	assert.True(t, ok)
	assert.Equal(t, "https://x/a.png", url)
	assert.True(t, job.Terminal())

	_, ok = GenerationJob{Status: JobStatusRunning}.FirstResult()
	assert.False(t, ok)
	assert.False(t, GenerationJob{Status: JobStatusPending}.Terminal())
}
