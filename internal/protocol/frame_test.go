package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"hostlink/internal/codec"
	"hostlink/internal/domain"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	tag, payload := codec.Encode(domain.MustFromAny(map[string]any{"hostname": "web-1"}))
	in := DataResponse(tag, payload)

	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if buf.Len() != HeaderLen+len(payload) {
		t.Fatalf("wire size = %d, want %d", buf.Len(), HeaderLen+len(payload))
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Type != MsgDataResponse || out.Tag != uint8(domain.KindMap) {
		t.Fatalf("header mismatch: got type=%s tag=%d", out.Type, out.Tag)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on closed stream, got %v", err)
	}
}

func TestReadFrameBadMagic(t *testing.T) {
	hb := EncodeHeader(Header{Magic: 0xdeadbeef, Version: Version, Type: MsgHello})
	_, err := ReadFrame(bytes.NewReader(hb[:]), DefaultLimits())
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestReadFrameBadVersion(t *testing.T) {
	hb := EncodeHeader(Header{Magic: Magic, Version: 9, Type: MsgHello})
	_, err := ReadFrame(bytes.NewReader(hb[:]), DefaultLimits())
	if !errors.Is(err, ErrBadVersion) {
		t.Fatalf("expected ErrBadVersion, got %v", err)
	}
}

func TestReadFramePayloadLimit(t *testing.T) {
	hb := EncodeHeader(Header{Magic: Magic, Version: Version, Type: MsgDataResponse, PayloadLen: 1 << 20})
	_, err := ReadFrame(bytes.NewReader(hb[:]), Limits{MaxPayloadBytes: 1024})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	err = WriteFrame(io.Discard, Frame{Type: MsgDataResponse, Payload: make([]byte, 2048)}, Limits{MaxPayloadBytes: 1024})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge on write, got %v", err)
	}
}

func TestReadFrameShortPayload(t *testing.T) {
	hb := EncodeHeader(Header{Magic: Magic, Version: Version, Type: MsgDataResponse, PayloadLen: 10})
	wire := append(hb[:], 1, 2, 3)
	_, err := ReadFrame(bytes.NewReader(wire), DefaultLimits())
	if !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestErrorFrameRoundTrip(t *testing.T) {
	f := ErrorFrame(domain.NewError(domain.UnsupportedType, "tag 255"))
	if f.Type != MsgError {
		t.Fatalf("type = %s, want error", f.Type)
	}
	got := ParseError(f.Payload)
	if got.Kind != domain.UnsupportedType || got.Message != "tag 255" {
		t.Fatalf("ParseError = %v", got)
	}

	foreign := ParseError(ErrorFrame(io.ErrClosedPipe).Payload)
	if foreign.Kind != domain.Internal {
		t.Fatalf("foreign error kind = %s, want internal", foreign.Kind)
	}
}

func TestParseErrorMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"unknown kind", []byte{99, 'x'}},
		{"invalid utf8", []byte{byte(domain.Timeout), 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseError(tt.payload); got.Kind != domain.Internal {
				t.Fatalf("kind = %s, want internal", got.Kind)
			}
		})
	}
}
