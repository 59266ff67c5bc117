// Package readiness tracks the lifecycle of one backend readiness check:
// checking until the health call settles, then connected or failed.
package readiness

import (
	"fmt"

	"github.com/hazz-dev/readycheck/internal/apiclient"
)

// ConnectionState is the coarse status of a check.
type ConnectionState int

const (
	StateChecking ConnectionState = iota
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// MarshalText lets the state appear as its name in JSON.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// View is an immutable snapshot of a check. The constructors are the only
// way to build one, so a connected view never carries an error and a failed
// view never carries a payload.
type View struct {
	state  ConnectionState
	health apiclient.BackendHealth
	errMsg string
}

// Checking is the view while the health call is in flight.
func Checking() View {
	return View{state: StateChecking}
}

// Connected is the view after a successful health call.
func Connected(h apiclient.BackendHealth) View {
	return View{state: StateConnected, health: h}
}

// Failed is the view after a failed health call.
func Failed(message string) View {
	return View{state: StateFailed, errMsg: message}
}

func (v View) State() ConnectionState {
	return v.state
}

// Health returns the payload when the view is connected.
func (v View) Health() (apiclient.BackendHealth, bool) {
	return v.health, v.state == StateConnected
}

// ErrorMessage returns the failure message when the view is failed.
func (v View) ErrorMessage() (string, bool) {
	return v.errMsg, v.state == StateFailed
}

// StatusText is the headline shown for the view.
func (v View) StatusText() string {
	switch v.state {
	case StateChecking:
		return "Checking backend connection..."
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Connection failed"
	default:
		panic(fmt.Sprintf("readiness: unknown state %d", int(v.state)))
	}
}

// DetailText is the secondary line shown under the status, or "" while
// checking.
func (v View) DetailText() string {
	switch v.state {
	case StateChecking:
		return ""
	case StateConnected:
		return fmt.Sprintf("Service: %s | Timestamp: %s", v.health.Service, v.health.Timestamp)
	case StateFailed:
		if v.errMsg == "" {
			return ""
		}
		return "Error: " + v.errMsg
	default:
		panic(fmt.Sprintf("readiness: unknown state %d", int(v.state)))
	}
}
