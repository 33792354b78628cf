package chat

// event is one unit of input to the dispatcher: a UI intent or a network
// occurrence. Network events carry the generation of the connection attempt
// that produced them.
type event interface {
	kind() string
}

type connectIntent struct{}

type connectResult struct {
	gen  uint64
	conn *Connection
	err  error
}

type connectionLost struct {
	gen uint64
}

type messageReceived struct {
	gen uint64
	msg ChatMessage
}

type sendResult struct {
	gen  uint64
	text string
	err  error
}

type identityIntent struct {
	name string
}

type draftIntent struct {
	text string
}

type sendIntent struct{}

type errorOccurred struct {
	gen uint64
	err error
}

func (connectIntent) kind() string   { return "connect" }
func (connectResult) kind() string   { return "connect_result" }
func (connectionLost) kind() string  { return "connection_lost" }
func (messageReceived) kind() string { return "message_received" }
func (sendResult) kind() string      { return "send_result" }
func (identityIntent) kind() string  { return "set_identity" }
func (draftIntent) kind() string     { return "user_input_changed" }
func (sendIntent) kind() string      { return "send_requested" }
func (errorOccurred) kind() string   { return "error_occurred" }
