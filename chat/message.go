package chat

import (
	"bytes"
	"encoding/json"
)

// ChatMessage is one entry of the chat log. Timestamp is assigned by the
// server and is nil on messages authored locally before they are sent.
type ChatMessage struct {
	Username  string  `json:"username"`
	Text      string  `json:"text"`
	Timestamp *string `json:"timestamp"`
}

// NewMessage builds a client-authored message without a timestamp.
func NewMessage(username, text string) ChatMessage {
	return ChatMessage{Username: username, Text: text}
}

// WithTimestamp returns a copy of m carrying ts.
func (m ChatMessage) WithTimestamp(ts string) ChatMessage {
	m.Timestamp = &ts
	return m
}

// Clone returns a copy of m that shares no memory with it.
func (m ChatMessage) Clone() ChatMessage {
	if m.Timestamp != nil {
		return m.WithTimestamp(*m.Timestamp)
	}
	return m
}

// Equal reports structural equality, comparing timestamps by value.
func (m ChatMessage) Equal(o ChatMessage) bool {
	if m.Username != o.Username || m.Text != o.Text {
		return false
	}
	if m.Timestamp == nil || o.Timestamp == nil {
		return m.Timestamp == nil && o.Timestamp == nil
	}
	return *m.Timestamp == *o.Timestamp
}

// FrameType distinguishes the transport's frame kinds.
type FrameType int

const (
	TextFrame FrameType = iota + 1
	BinaryFrame
)

func (t FrameType) String() string {
	switch t {
	case TextFrame:
		return "text"
	case BinaryFrame:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one discrete unit of transport-level delivery.
type Frame struct {
	Type FrameType
	Data []byte
}

// Encode serializes m into its canonical text frame body.
// HTML escaping is disabled so <, > and & travel as typed.
func Encode(m ChatMessage) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// wireMessage mirrors ChatMessage with pointer fields so that missing
// required fields can be told apart from empty strings.
type wireMessage struct {
	Username  *string `json:"username"`
	Text      *string `json:"text"`
	Timestamp *string `json:"timestamp"`
}

// Decode parses a text frame body. Any failure is reported as *ParseError
// carrying the raw payload.
func Decode(raw string) (ChatMessage, error) {
	var w wireMessage
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return ChatMessage{}, &ParseError{Raw: raw, Err: err}
	}
	if w.Username == nil {
		return ChatMessage{}, &ParseError{Raw: raw, Err: errMissingField("username")}
	}
	if w.Text == nil {
		return ChatMessage{}, &ParseError{Raw: raw, Err: errMissingField("text")}
	}
	return ChatMessage{Username: *w.Username, Text: *w.Text, Timestamp: w.Timestamp}, nil
}

// DecodeFrame decodes a transport frame. Binary frames are rejected with
// *UnsupportedFrameTypeError.
func DecodeFrame(f Frame) (ChatMessage, error) {
	if f.Type != TextFrame {
		return ChatMessage{}, &UnsupportedFrameTypeError{Type: f.Type, Size: len(f.Data)}
	}
	return Decode(string(f.Data))
}
