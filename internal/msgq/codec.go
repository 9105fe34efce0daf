package msgq

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameSize is the encoded size of one Message.
const FrameSize = 20

// WriteFrame encodes msg to w as a fixed-size little-endian frame.
func WriteFrame(w io.Writer, msg Message) error {
	var buf [FrameSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(int64(msg.Source)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(msg.Target)))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(msg.Payload))
	_, err := w.Write(buf[:])
	return err
}

// ReadFrame decodes one frame from r. It returns io.EOF only when r is
// exhausted on a frame boundary.
func ReadFrame(r io.Reader) (Message, error) {
	var buf [FrameSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Message{}, err
	}

	msg := Message{
		Source:  int(int64(binary.LittleEndian.Uint64(buf[0:8]))),
		Target:  int(int64(binary.LittleEndian.Uint64(buf[8:16]))),
		Payload: Payload(int32(binary.LittleEndian.Uint32(buf[16:20]))),
	}
	if msg.Payload != Terminate && msg.Payload != Continue {
		return Message{}, fmt.Errorf("%w: %d", ErrBadPayload, msg.Payload)
	}
	return msg, nil
}
