// Package protocol implements the framed wire protocol spoken between a
// hostlink client and a management agent.
//
// Every message is a 16-byte big-endian header followed by the payload:
//
//	magic u32 | version u16 | type u16 | tag u8 | reserved [3]u8 | payload_len u32
//
// A session is: client Hello (token) -> agent HelloAck, then any number of
// DataRequest -> DataResponse pairs. Failures are reported with an Error frame
// whose payload is the error kind byte followed by a UTF-8 message.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Magic   uint32 = 0x484c4e4b // "HLNK"
	Version uint16 = 1

	HeaderLen = 16
)

// MessageType identifies the frame payload
type MessageType uint16

const (
	MsgHello        MessageType = 1
	MsgHelloAck     MessageType = 2
	MsgDataRequest  MessageType = 3
	MsgDataResponse MessageType = 4
	MsgError        MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "hello"
	case MsgHelloAck:
		return "hello_ack"
	case MsgDataRequest:
		return "data_request"
	case MsgDataResponse:
		return "data_response"
	case MsgError:
		return "error"
	}
	return fmt.Sprintf("message(%d)", uint16(t))
}

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrBadMagic        = errors.New("frame: bad magic")
	ErrBadVersion      = errors.New("frame: unsupported version")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrShortPayload    = errors.New("frame: short payload")
)

// Header is the fixed wire header
type Header struct {
	Magic      uint32
	Version    uint16
	Type       MessageType
	Tag        uint8
	PayloadLen uint32
}

// Frame is one complete wire message
type Frame struct {
	Type    MessageType
	Tag     uint8
	Payload []byte
}

// Limits constrains frame decode/encode memory use
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 8 * 1024 * 1024}
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h := DecodeHeader(fixed)
	if h.Magic != Magic {
		return Frame{}, ErrBadMagic
	}
	if h.Version != Version {
		return Frame{}, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, ErrPayloadTooLarge
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return Frame{}, ErrShortPayload
			}
			return Frame{}, err
		}
	}

	return Frame{Type: h.Type, Tag: h.Tag, Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}

	buf := make([]byte, 0, HeaderLen+len(f.Payload))
	hb := EncodeHeader(Header{
		Magic:      Magic,
		Version:    Version,
		Type:       f.Type,
		Tag:        f.Tag,
		PayloadLen: uint32(len(f.Payload)),
	})
	buf = append(buf, hb[:]...)
	buf = append(buf, f.Payload...)
	_, err := w.Write(buf)
	return err
}

func EncodeHeader(h Header) [HeaderLen]byte {
	var buf [HeaderLen]byte
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	buf[8] = h.Tag
	binary.BigEndian.PutUint32(buf[12:16], h.PayloadLen)
	return buf
}

func DecodeHeader(b [HeaderLen]byte) Header {
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		Type:       MessageType(binary.BigEndian.Uint16(b[6:8])),
		Tag:        b[8],
		PayloadLen: binary.BigEndian.Uint32(b[12:16]),
	}
}
