package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidRequest    = errors.New("invalid asset request")
	ErrSubmission        = errors.New("submission rejected")
	ErrPoll              = errors.New("poll failed")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrTimedOut          = errors.New("generation timed out")
	ErrDownloadFailed    = errors.New("download failed")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrIOFailure         = errors.New("io failure")
)

// ErrorKind is the stable, log- and metric-friendly name of a failure class.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindSubmission        ErrorKind = "submission"
	KindPoll              ErrorKind = "poll"
	KindGenerationFailed  ErrorKind = "generation_failed"
	KindTimedOut          ErrorKind = "timed_out"
	KindDownloadFailed    ErrorKind = "download_failed"
	KindInvalidDimensions ErrorKind = "invalid_dimensions"
	KindIOFailure         ErrorKind = "io_failure"
	KindCanceled          ErrorKind = "canceled"
	KindUnknown           ErrorKind = "unknown"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrSubmission, KindSubmission},
	{ErrTimedOut, KindTimedOut},
	{ErrPoll, KindPoll},
	{ErrGenerationFailed, KindGenerationFailed},
	{ErrDownloadFailed, KindDownloadFailed},
	{ErrInvalidDimensions, KindInvalidDimensions},
	{ErrIOFailure, KindIOFailure},
}

// KindOf classifies err. Sentinels take precedence over context errors so a
// poll deadline reports as timed_out rather than canceled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimedOut
	}
	return KindUnknown
}
