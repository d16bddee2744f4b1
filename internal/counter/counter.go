// Package counter is the reference application served by vdombridge: a
// single counter with increment and decrement buttons that pushes itself
// back to an odd value shortly after landing on an even one.
package counter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vango-dev/vdombridge/pkg/actor"
	"github.com/vango-dev/vdombridge/pkg/protocol"
)

// Action tags understood by the counter.
const (
	Increment protocol.Tag = "Increment"
	Decrement protocol.Tag = "Decrement"
)

// DefaultDelay is how long the counter waits before reacting to an even count.
const DefaultDelay = 200 * time.Millisecond

var (
	// ErrUnderflow is returned by the reducer under UnderflowFail when a
	// decrement would take the count below zero.
	ErrUnderflow = errors.New("counter: decrement below zero")

	// ErrUnknownAction is returned for a tag the counter does not handle.
	ErrUnknownAction = errors.New("counter: unknown action")

	// ErrInvalidPolicy is returned when parsing an unknown underflow policy.
	ErrInvalidPolicy = errors.New("counter: invalid underflow policy")
)

// UnderflowPolicy decides what a decrement at zero does.
type UnderflowPolicy string

const (
	// UnderflowSaturate keeps the count at zero. Zero is even, so the
	// opposite action is still scheduled.
	UnderflowSaturate UnderflowPolicy = "saturate"

	// UnderflowReject ignores the decrement entirely.
	UnderflowReject UnderflowPolicy = "reject"

	// UnderflowFail makes the reducer return ErrUnderflow, stopping the session.
	UnderflowFail UnderflowPolicy = "fail"
)

// ParseUnderflowPolicy parses a policy name, case-insensitively.
func ParseUnderflowPolicy(s string) (UnderflowPolicy, error) {
	switch p := UnderflowPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case UnderflowSaturate, UnderflowReject, UnderflowFail:
		return p, nil
	case "":
		return UnderflowSaturate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *UnderflowPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseUnderflowPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// String implements fmt.Stringer.
func (p UnderflowPolicy) String() string {
	return string(p)
}

// State is the counter state. It is a value type; the reducer never mutates it.
type State struct {
	Count uint64
}

// Options configures the counter reducer.
type Options struct {
	// Delay before the opposite action fires. Default: DefaultDelay.
	Delay time.Duration

	// Underflow selects the decrement-at-zero behavior. Default: UnderflowSaturate.
	Underflow UnderflowPolicy
}

func (o Options) withDefaults() Options {
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
	}
	if o.Underflow == "" {
		o.Underflow = UnderflowSaturate
	}
	return o
}

// Tags returns the action tags the counter declares.
func Tags() []protocol.Tag {
	return []protocol.Tag{Increment, Decrement}
}

// NewCodec returns a codec accepting exactly the counter tags.
func NewCodec() *protocol.Codec {
	return protocol.NewCodec(Tags()...)
}

// opposite returns the tag that undoes tag.
func opposite(tag protocol.Tag) protocol.Tag {
	if tag == Increment {
		return Decrement
	}
	return Increment
}

// NewReducer returns the counter reducer. Whenever an action leaves the
// count even, the opposite action is scheduled after opts.Delay.
func NewReducer(opts Options) actor.Reducer[State] {
	opts = opts.withDefaults()

	return func(fx actor.Effects, s State, a protocol.Action) (State, bool, error) {
		next := s
		switch a.Tag {
		case Increment:
			next.Count++
		case Decrement:
			if s.Count == 0 {
				switch opts.Underflow {
				case UnderflowReject:
					return s, false, nil
				case UnderflowFail:
					return s, false, ErrUnderflow
				}
				// Saturate: stay at zero.
			} else {
				next.Count--
			}
		default:
			return s, false, fmt.Errorf("%w: %q", ErrUnknownAction, string(a.Tag))
		}

		if next.Count%2 == 0 {
			fx.After(opts.Delay, protocol.NewAction(opposite(a.Tag)))
		}
		return next, next != s, nil
	}
}
