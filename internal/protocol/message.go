package protocol

import (
	"unicode/utf8"

	"hostlink/internal/domain"
)

// Hello builds the client greeting carrying the agent token
func Hello(token string) Frame {
	return Frame{Type: MsgHello, Payload: []byte(token)}
}

// HelloAck builds the agent's reply to an accepted Hello
func HelloAck() Frame {
	return Frame{Type: MsgHelloAck}
}

// DataRequest asks the agent for its current data
func DataRequest() Frame {
	return Frame{Type: MsgDataRequest}
}

// DataResponse carries a tagged value payload
func DataResponse(tag domain.Kind, payload []byte) Frame {
	return Frame{Type: MsgDataResponse, Tag: uint8(tag), Payload: payload}
}

// ErrorFrame encodes a structured error for the peer
func ErrorFrame(err error) Frame {
	e := domain.Classify(err)
	payload := make([]byte, 0, 1+len(e.Message))
	payload = append(payload, byte(e.Kind))
	payload = append(payload, e.Message...)
	return Frame{Type: MsgError, Payload: payload}
}

// ParseError decodes an Error frame payload. Unknown kinds and malformed
// payloads are reported as Internal.
func ParseError(payload []byte) *domain.Error {
	if len(payload) == 0 {
		return domain.NewError(domain.Internal, "peer sent empty error frame")
	}
	kind := domain.ErrorKind(payload[0])
	msg := payload[1:]
	if !kind.Valid() || !utf8.Valid(msg) {
		return domain.Errorf(domain.Internal, "peer sent malformed error frame (kind %d)", payload[0])
	}
	return domain.NewError(kind, string(msg))
}
