package commands

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
)

// Outcome classifies how a command invocation ended
type Outcome string

const (
	NotCommand       Outcome = "not_command"
	Ok               Outcome = "ok"
	UnknownCommand   Outcome = "unknown_command"
	ConversionFailed Outcome = "conversion_failed"
	MissingArgument  Outcome = "missing_argument"
	CheckFailed      Outcome = "check_failed"
	RateLimited      Outcome = "rate_limited"
	UserErrored      Outcome = "user_error"
	Internal         Outcome = "internal"
)

// silentCheck marks a check failure that is never reported
const silentCheck = "do-not-run"

// ErrUnknownCommand is returned when no command matches the invoked name
var ErrUnknownCommand = errors.New("unknown command")

type ConversionError struct {
	Param  string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Param, e.Reason)
}

type MissingArgumentError struct {
	Param string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("missing required argument %s", e.Param)
}

type CheckFailure struct {
	Reason string
}

func (e *CheckFailure) Error() string {
	return "check failed: " + e.Reason
}

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// UserError is a failure caused by the invoker, shown to them verbatim
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// Errorf builds a UserError
func Errorf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// stackTracer is implemented by pkg/errors values
type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// withStack attaches a stack unless err already carries one
func withStack(err error) error {
	var st stackTracer
	if errors.As(err, &st) {
		return err
	}
	return pkgerrors.WithStack(err)
}

// Classify maps a terminal error to its outcome
func Classify(err error) Outcome {
	if err == nil {
		return Ok
	}

	var (
		conv  *ConversionError
		miss  *MissingArgumentError
		check *CheckFailure
		rl    *RateLimitedError
		user  *UserError
	)
	switch {
	case errors.Is(err, ErrUnknownCommand):
		return UnknownCommand
	case errors.As(err, &conv):
		return ConversionFailed
	case errors.As(err, &miss):
		return MissingArgument
	case errors.As(err, &check):
		return CheckFailed
	case errors.As(err, &rl):
		return RateLimited
	case errors.As(err, &user):
		return UserErrored
	}
	return Internal
}

// UserMessage renders the one-line reply for err. The second result is
// false when nothing should be sent.
func UserMessage(err error, devMode bool) (string, bool) {
	var (
		conv  *ConversionError
		miss  *MissingArgumentError
		check *CheckFailure
		rl    *RateLimitedError
		user  *UserError
	)

	switch Classify(err) {
	case Ok, UnknownCommand, NotCommand:
		return "", false
	case ConversionFailed:
		errors.As(err, &conv)
		return fmt.Sprintf("❌ Invalid value for `%s`: %s", conv.Param, conv.Reason), true
	case MissingArgument:
		errors.As(err, &miss)
		return fmt.Sprintf("❌ Missing required argument `%s`", miss.Param), true
	case CheckFailed:
		errors.As(err, &check)
		if check.Reason == silentCheck {
			return "", false
		}
		return "❌ Check failed: " + check.Reason, true
	case RateLimited:
		errors.As(err, &rl)
		return fmt.Sprintf("❌ You're doing that too fast. Try again in %s.", formatWait(rl.RetryAfter)), true
	case UserErrored:
		errors.As(err, &user)
		return "❌ " + user.Message, true
	}

	if devMode {
		return truncate(fmt.Sprintf("❌ Internal error:\n```\n%+v\n```", err), 1990), true
	}
	return "❌ An internal error occurred. It has been reported.", true
}

func formatWait(d time.Duration) string {
	if d < time.Second {
		return "a moment"
	}
	return d.Round(time.Second).String()
}

// truncate cuts a code block to at most max bytes without splitting a rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 4
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n```"
}
