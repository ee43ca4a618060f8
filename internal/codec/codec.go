package codec

import (
	"io"

	"hostlink/internal/domain"
)

// Parser reads a document into a typed value
type Parser interface {
	Parse(r io.Reader) (domain.Value, error)
	Format() string
}

// Exporter writes a typed value as a document
type Exporter interface {
	Export(v domain.Value, w io.Writer) error
	Format() string
}

// Codec is a document format that can be read and written
type Codec interface {
	Parser
	Exporter
}

// ForFormat returns the document codec for a format name
func ForFormat(format string) (Codec, error) {
	switch format {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, domain.Errorf(domain.UnsupportedType, "unsupported document format %q", format)
}
