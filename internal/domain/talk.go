package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TalkStatus enumerates the lifecycle states of a remote avatar video job.
type TalkStatus string

const (
	TalkStatusPending  TalkStatus = "pending"
	TalkStatusDone     TalkStatus = "done"
	TalkStatusError    TalkStatus = "error"
	TalkStatusRejected TalkStatus = "rejected"
	// TalkStatusTimedOut is never reported by the remote service. It marks
	// persisted records whose local wait budget ran out.
	TalkStatusTimedOut TalkStatus = "timed_out"
)

// ParseTalkStatus normalizes a remote status string. The remote "created" and
// "started" states, and anything unrecognized, count as pending. timed_out is
// a local state and is never parsed from the remote side.
func ParseTalkStatus(raw string) TalkStatus {
	switch TalkStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case TalkStatusDone:
		return TalkStatusDone
	case TalkStatusError:
		return TalkStatusError
	case TalkStatusRejected:
		return TalkStatusRejected
	default:
		return TalkStatusPending
	}
}

// Terminal reports whether no further transition can happen from s.
func (s TalkStatus) Terminal() bool {
	return s != TalkStatusPending
}

// Failed reports whether s is a terminal failure reported by the remote side.
func (s TalkStatus) Failed() bool {
	return s == TalkStatusError || s == TalkStatusRejected
}

// TalkConfig carries the optional playback flags forwarded to the provider.
type TalkConfig struct {
	Fluent   bool
	PadAudio float64
	Stitch   bool
}

// DefaultTalkConfig mirrors the flags used when a request carries none.
func DefaultTalkConfig() TalkConfig {
	return TalkConfig{Fluent: true, PadAudio: 0, Stitch: true}
}

// TalkRequest describes one avatar video to generate.
type TalkRequest struct {
	Text      string
	SourceURL string
	VoiceID   string
	Config    *TalkConfig
}

// TalkHandle is the opaque identifier the remote service assigns to a job.
type TalkHandle string

func (h TalkHandle) String() string { return string(h) }

// TalkResult is the outcome of a single status read.
type TalkResult struct {
	Handle       TalkHandle
	Status       TalkStatus
	ResultURL    string
	ErrorMessage string // provider description of a failed job
	Raw          json.RawMessage
}

// Talk is the persisted record of an asynchronously submitted job.
type Talk struct {
	ID           string
	Handle       TalkHandle
	Text         string
	VoiceID      string
	SourceURL    string
	Status       TalkStatus
	ResultURL    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
