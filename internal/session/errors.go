package session

import (
	"errors"

	"github.com/omnisurfer/dataq-logger/internal/metrics"
)

// Sentinel errors, wrapped with fmt.Errorf("%w: ...") at the call site so
// callers can classify failures via errors.Is while still seeing detail.
var (
	ErrBind            = errors.New("session: bind")
	ErrCommandSend     = errors.New("session: command send")
	ErrCommandTimeout  = errors.New("session: command timeout")
	ErrUnexpectedFrame = errors.New("session: unexpected frame")
	ErrStateTransition = errors.New("session: invalid state transition")
	ErrConfiguration   = errors.New("session: configuration")
	ErrStateRegression = errors.New("session: device reported a cumulative count behind tracked state")
)

// mapErrToMetric classifies a wrapped sentinel error into a metrics label.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrCommandTimeout):
		return metrics.ErrCommandTimeout
	case errors.Is(err, ErrCommandSend):
		return metrics.ErrCommandSend
	case errors.Is(err, ErrUnexpectedFrame):
		return metrics.ErrMalformedFrame
	case errors.Is(err, ErrStateRegression):
		return metrics.ErrStateRegression
	case errors.Is(err, ErrBind):
		return metrics.ErrBind
	case errors.Is(err, ErrConfiguration):
		return metrics.ErrConfiguration
	default:
		return "other"
	}
}
