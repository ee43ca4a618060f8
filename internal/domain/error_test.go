package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorAlwaysHasKindAndMessage(t *testing.T) {
	for _, kind := range ErrorKinds() {
		e := NewError(kind, "")
		if e.Message == "" {
			t.Errorf("NewError(%s, \"\") has empty message", kind)
		}
		if !e.Kind.Valid() {
			t.Errorf("kind %s reported invalid", kind)
		}
	}
}

func TestErrorString(t *testing.T) {
	e := Errorf(ConnectionRefused, "dial %s", "10.0.0.5:7101")
	if got := e.Error(); got != "connection_refused: dial 10.0.0.5:7101" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("fetch: %w", NewError(ChannelClosed, "host released"))

	if !errors.Is(err, ErrChannelClosed) {
		t.Error("errors.Is should match by kind through wrapping")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is must not match a different kind")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	e := Wrap(DecodeError, io.ErrUnexpectedEOF, "read map entry")
	if !errors.Is(e, io.ErrUnexpectedEOF) {
		t.Error("cause should be reachable with errors.Is")
	}
	if e.Message != "read map entry: unexpected EOF" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"domain error", NewError(InvalidPayload, "bad"), InvalidPayload},
		{"wrapped domain error", fmt.Errorf("x: %w", NewError(Timeout, "slow")), Timeout},
		{"deadline", context.DeadlineExceeded, Timeout},
		{"foreign", io.EOF, Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}

	orig := NewError(UnsupportedType, "tag 255")
	if got := Classify(fmt.Errorf("decode: %w", orig)); got != orig {
		t.Errorf("Classify should return the existing *Error, got %v", got)
	}

	got := Classify(io.ErrClosedPipe)
	if got.Kind != Internal {
		t.Errorf("Classify(foreign).Kind = %s, want internal", got.Kind)
	}
	if !errors.Is(got, io.ErrClosedPipe) {
		t.Error("Classify must keep the foreign error as cause")
	}
}

func TestParseErrorKind(t *testing.T) {
	for _, kind := range ErrorKinds() {
		back, ok := ParseErrorKind(kind.String())
		if !ok || back != kind {
			t.Errorf("ParseErrorKind(%q) = %s, %v", kind.String(), back, ok)
		}
	}
	if _, ok := ParseErrorKind("nope"); ok {
		t.Error("unknown kind name should not parse")
	}
}
