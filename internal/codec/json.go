package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"hostlink/internal/domain"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads a single JSON document. Numbers without a fraction or exponent
// become Integer values, everything else numeric becomes Float.
func (c *JSONCodec) Parse(r io.Reader) (domain.Value, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return domain.Value{}, domain.Wrap(domain.DecodeError, err, "failed to parse JSON")
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return domain.Value{}, domain.NewError(domain.DecodeError, "failed to parse JSON: trailing data after document")
	}
	return domain.FromAny(raw)
}

// Export writes v as indented JSON
func (c *JSONCodec) Export(v domain.Value, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(v.ToAny()); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
