package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []ChatMessage{
		NewMessage("alice", "hi"),
		NewMessage("bob", "").WithTimestamp("12:00"),
		NewMessage("", "no name"),
		NewMessage("민수", "안녕하세요 👋").WithTimestamp(""),
		NewMessage("eve", `<b>bold</b> & "quoted" \ back`),
		NewMessage("tab", "line1\nline2\tend"),
	}
	for _, m := range cases {
		raw, err := Encode(m)
		require.NoError(t, err)
		got, err := Decode(raw)
		require.NoError(t, err, raw)
		assert.True(t, m.Equal(got), "round trip of %s", raw)
		assert.Equal(t, m, got)
	}
}

func TestEncodeWireFormat(t *testing.T) {
	raw, err := Encode(NewMessage("alice", "hi"))
	require.NoError(t, err)
	assert.Equal(t, `{"username":"alice","text":"hi","timestamp":null}`, raw)

	raw, err = Encode(NewMessage("a", "<3 & co").WithTimestamp("12:00"))
	require.NoError(t, err)
	assert.Equal(t, `{"username":"a","text":"<3 & co","timestamp":"12:00"}`, raw)
}

func TestDecodeOptionalTimestamp(t *testing.T) {
	m, err := Decode(`{"username":"alice","text":"hi"}`)
	require.NoError(t, err)
	assert.Nil(t, m.Timestamp)

	m, err = Decode(`{"username":"alice","text":"hi","timestamp":"12:00","room":"ignored"}`)
	require.NoError(t, err)
	require.NotNil(t, m.Timestamp)
	assert.Equal(t, "12:00", *m.Timestamp)
}

func TestDecodeMalformed(t *testing.T) {
	for _, raw := range []string{
		`{not json`,
		``,
		`[]`,
		`{"text":"hi"}`,
		`{"username":"alice"}`,
		`{"username":null,"text":"hi"}`,
		`{"username":1,"text":"hi"}`,
	} {
		_, err := Decode(raw)
		var pe *ParseError
		require.ErrorAs(t, err, &pe, "input %q", raw)
		assert.Equal(t, raw, pe.Raw)
		assert.Contains(t, pe.Error(), "parse server message")
	}
}

func TestDecodeFrameRejectsBinary(t *testing.T) {
	_, err := DecodeFrame(Frame{Type: BinaryFrame, Data: []byte{1, 2, 3}})
	var ue *UnsupportedFrameTypeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, BinaryFrame, ue.Type)
	assert.Equal(t, 3, ue.Size)

	m, err := DecodeFrame(Frame{Type: TextFrame, Data: []byte(`{"username":"a","text":"b"}`)})
	require.NoError(t, err)
	assert.Equal(t, NewMessage("a", "b"), m)
}

func TestMessageEqual(t *testing.T) {
	a := NewMessage("a", "b").WithTimestamp("1")
	b := NewMessage("a", "b").WithTimestamp("1")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewMessage("a", "b")))
	assert.False(t, a.Equal(NewMessage("a", "c").WithTimestamp("1")))
	assert.True(t, NewMessage("x", "y").Equal(NewMessage("x", "y")))
}
