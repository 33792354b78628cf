package chat

import "fmt"

// Status is the connection status of the client.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disconnected":
		*s = StatusDisconnected
	case "connecting":
		*s = StatusConnecting
	case "connected":
		*s = StatusConnected
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// lifecycle tracks Idle -> Connecting -> Connected -> Disconnected -> Connecting.
// Idle is the Disconnected status before the first attempt (gen == 0).
//
// Invariant: status == StatusConnected iff sender != nil.
type lifecycle struct {
	status Status
	gen    uint64
	sender *Sender
}

// beginConnect starts a new attempt and returns its generation. It refuses
// while an attempt is in flight or a connection is live.
func (l *lifecycle) beginConnect() (uint64, bool) {
	if l.status != StatusDisconnected {
		return 0, false
	}
	l.gen++
	l.status = StatusConnecting
	return l.gen, true
}

// current reports whether gen belongs to the attempt the machine is tracking.
func (l *lifecycle) current(gen uint64) bool {
	return gen != 0 && gen == l.gen
}

// connected installs the send capability of the current attempt.
func (l *lifecycle) connected(s *Sender) {
	l.sender = s
	l.status = StatusConnected
}

// failed ends the current attempt without a connection.
func (l *lifecycle) failed() {
	l.status = StatusDisconnected
}

// lost drops the send capability. The caller's message log is untouched.
func (l *lifecycle) lost() {
	if l.sender != nil {
		_ = l.sender.revoke()
		l.sender = nil
	}
	l.status = StatusDisconnected
}

func (l *lifecycle) consistent() bool {
	return (l.status == StatusConnected) == (l.sender != nil)
}
