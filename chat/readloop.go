package chat

import (
	"errors"
	"io"
)

// readLoop consumes rx until the stream ends or fails. Every inbound frame
// becomes exactly one event, and the loop ends with exactly one
// connectionLost. A runtime failure is reported as errorOccurred before it.
func readLoop(rx *Receiver, emit func(event) bool) error {
	if err := rx.acquire(); err != nil {
		return err
	}
	defer emit(connectionLost{gen: rx.gen})

	for {
		f, err := rx.conn.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				emit(errorOccurred{gen: rx.gen, err: newTransportError(err)})
			}
			return nil
		}
		msg, err := DecodeFrame(f)
		if err != nil {
			if !emit(errorOccurred{gen: rx.gen, err: err}) {
				return nil
			}
			continue
		}
		if !emit(messageReceived{gen: rx.gen, msg: msg}) {
			return nil
		}
	}
}
