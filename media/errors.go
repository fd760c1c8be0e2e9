package media

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies playback failures.
type Kind int

const (
	// NoPlayableSource means negotiation yielded no usable source. Fatal to the attempt.
	NoPlayableSource Kind = iota + 1
	// InvalidSource means a playback URL could not be built or validated. Fatal to the attempt.
	InvalidSource
	// ResumeFailed means the resume machine gave up. Playback continues where the engine is.
	ResumeFailed
	// EngineTransient means the engine or transport failed during negotiation or restart.
	EngineTransient
)

func (k Kind) String() string {
	switch k {
	case NoPlayableSource:
		return "no playable source"
	case InvalidSource:
		return "invalid source"
	case ResumeFailed:
		return "resume failed"
	case EngineTransient:
		return "engine error"
	default:
		return "unknown error"
	}
}

// Fatal reports whether the playback attempt must be aborted.
func (k Kind) Fatal() bool {
	return k == NoPlayableSource || k == InvalidSource
}

var (
	ErrNoPlayableSource = &Error{Kind: NoPlayableSource}
	ErrInvalidSource    = &Error{Kind: InvalidSource}
	ErrResumeFailed     = &Error{Kind: ResumeFailed}
	ErrEngineTransient  = &Error{Kind: EngineTransient}
)

// Error carries the operation context of a playback failure.
// The message never includes the cause so transport details stay out of user output.
type Error struct {
	Kind     Kind
	Op       string
	ItemID   string
	Attempts int
	Err      error
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, op, itemID string, err error) *Error {
	return &Error{Kind: kind, Op: op, ItemID: itemID, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.ItemID != "" {
		_, _ = fmt.Fprintf(&b, " (item %s", e.ItemID)
		if e.Attempts > 0 {
			_, _ = fmt.Fprintf(&b, ", %d attempts", e.Attempts)
		}
		b.WriteString(")")
	} else if e.Attempts > 0 {
		_, _ = fmt.Fprintf(&b, " (%d attempts)", e.Attempts)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
