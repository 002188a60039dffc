package did

import (
	"errors"
	"fmt"
	"time"

	"avatar/internal/domain"
)

var (
	// ErrMissingAPIKey indicates that the client was configured without credentials.
	ErrMissingAPIKey = errors.New("did: api key is required")
	// ErrTimeout matches every TimeoutError.
	ErrTimeout = errors.New("did: video generation timeout")
)

// SubmissionError reports a talk that could not be created. StatusCode is
// zero when the request never got a response.
type SubmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("did: submit: status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("did: submit: status %d", e.StatusCode)
	case e.Err != nil:
		return "did: submit: " + e.Err.Error()
	default:
		return "did: submit: " + e.Message
	}
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollError reports a status read that failed in transport or was refused.
type PollError struct {
	Handle     domain.TalkHandle
	StatusCode int
	Message    string
	Err        error
}

func (e *PollError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("did: poll %s: status %d: %s", e.Handle, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("did: poll %s: status %d", e.Handle, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("did: poll %s: %v", e.Handle, e.Err)
	default:
		return fmt.Sprintf("did: poll %s: %s", e.Handle, e.Message)
	}
}

func (e *PollError) Unwrap() error { return e.Err }

// RemoteJobFailure reports a talk the remote service marked error or rejected.
type RemoteJobFailure struct {
	Handle  domain.TalkHandle
	Status  domain.TalkStatus
	Message string
	Result  *domain.TalkResult
}

func (e *RemoteJobFailure) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("did: video generation failed (%s): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("did: video generation failed (%s)", e.Status)
}

func (e *RemoteJobFailure) Is(target error) bool { return target == domain.ErrProviderFailure }

// TimeoutError reports a wait budget that ran out before a terminal status.
type TimeoutError struct {
	Handle  domain.TalkHandle
	Waited  time.Duration
	Polls   int
	LastRaw []byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("did: video generation timeout after %s (%d polls)", e.Waited, e.Polls)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
