package chat

// clientState is the authoritative aggregate. Only the dispatcher goroutine
// touches it.
type clientState struct {
	identity string
	draft    string
	log      []ChatMessage
	lastErr  error
}

// Snapshot is a copy of the client state handed to UIs. Changing it does not
// affect the dispatcher.
type Snapshot struct {
	Status     Status        `json:"status"`
	Identity   string        `json:"identity"`
	Messages   []ChatMessage `json:"messages"`
	Draft      string        `json:"draft"`
	LastError  string        `json:"last_error,omitempty"`
	CanSend    bool          `json:"can_send"`
	Generation uint64        `json:"generation"`

	// Err is the error behind LastError.
	Err error `json:"-"`
}

// IsOwn reports whether m was written under the current identity.
func (s Snapshot) IsOwn(m ChatMessage) bool {
	return m.Username == s.Identity
}

func (d *Dispatcher) buildSnapshot() *Snapshot {
	msgs := make([]ChatMessage, len(d.state.log))
	for i, m := range d.state.log {
		msgs[i] = m.Clone()
	}
	snap := &Snapshot{
		Status:     d.life.status,
		Identity:   d.state.identity,
		Messages:   msgs,
		Draft:      d.state.draft,
		CanSend:    d.life.sender != nil,
		Generation: d.life.gen,
		Err:        d.state.lastErr,
	}
	if d.state.lastErr != nil {
		snap.LastError = d.state.lastErr.Error()
	}
	return snap
}
