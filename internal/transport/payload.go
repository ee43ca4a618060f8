package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"hostlink/internal/codec"
	"hostlink/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// BootstrapVersion is the only bootstrap payload version understood
const BootstrapVersion = 1

// Bootstrap is the decoded form of a bootstrap payload blob. A blob either
// names an agent endpoint to dial or carries the host data inline. The blob
// may be JSON or YAML.
type Bootstrap struct {
	Version    int         `json:"version,omitempty" yaml:"version" validate:"omitempty,eq=1" jsonschema:"enum=1"`
	Transport  string      `json:"transport,omitempty" yaml:"transport" validate:"omitempty,oneof=tcp tls ssh" jsonschema:"enum=tcp,enum=tls,enum=ssh"`
	Endpoint   string      `json:"endpoint,omitempty" yaml:"endpoint" validate:"required_without=Data,omitempty,hostname_port" jsonschema:"description=agent host:port to dial"`
	Token      string      `json:"token,omitempty" yaml:"token" jsonschema:"description=agent hello token"`
	User       string      `json:"user,omitempty" yaml:"user" jsonschema:"description=ssh username"`
	ServerName string      `json:"server_name,omitempty" yaml:"server_name" jsonschema:"description=tls server name override"`
	CAFile     string      `json:"ca_file,omitempty" yaml:"ca_file" jsonschema:"description=PEM bundle of CAs trusted for the agent certificate"`
	Insecure   bool        `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify" jsonschema:"description=skip agent certificate verification"`
	Data       *InlineData `json:"data,omitempty" yaml:"data" jsonschema:"description=host data served without dialing"`
}

// InlineData holds the inline data node and, once ParseBootstrap has
// checked it, the converted value
type InlineData struct {
	node      *yaml.Node
	value     domain.Value
	converted bool
}

func (d *InlineData) UnmarshalYAML(n *yaml.Node) error {
	d.node = n
	return nil
}

// JSONSchema describes inline data as any JSON value
func (InlineData) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Description: "arbitrary host data"}
}

// Value converts the inline data into a typed value
func (d *InlineData) Value() (domain.Value, error) {
	if d == nil || d.node == nil {
		return domain.NewNull(), nil
	}
	if d.converted {
		return d.value, nil
	}
	v, err := codec.FromYAMLNode(d.node)
	if err != nil {
		return domain.Value{}, err
	}
	d.value, d.converted = v, true
	return v, nil
}

// validate is a package-level singleton; validators cache struct metadata
var validate = validator.New()

// ParseBootstrap decodes and validates a bootstrap blob. Every failure is
// reported as InvalidPayload.
func ParseBootstrap(blob []byte) (*Bootstrap, error) {
	if len(bytes.TrimSpace(blob)) == 0 {
		return nil, domain.NewError(domain.InvalidPayload, "bootstrap payload is empty")
	}

	var b Bootstrap
	decoder := yaml.NewDecoder(bytes.NewReader(blob))
	decoder.KnownFields(true)
	if err := decoder.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.NewError(domain.InvalidPayload, "bootstrap payload is empty")
		}
		return nil, domain.Wrap(domain.InvalidPayload, err, "malformed bootstrap payload")
	}
	b.Transport = strings.ToLower(strings.TrimSpace(b.Transport))

	if b.Data != nil && b.Data.node != nil && b.Data.node.ShortTag() == "!!null" {
		b.Data = nil
	}

	if err := validate.Struct(&b); err != nil {
		return nil, domain.NewError(domain.InvalidPayload, "bootstrap payload: "+describeValidation(err))
	}
	if b.Data != nil {
		if _, err := b.Data.Value(); err != nil {
			return nil, domain.Errorf(domain.InvalidPayload, "inline data: %s", domain.Classify(err).Message)
		}
	}
	return &b, nil
}

// Descriptor returns the transport descriptor for dialing the endpoint
func (b *Bootstrap) Descriptor() domain.TransportDescriptor {
	return domain.TransportDescriptor{
		Transport:  b.Transport,
		Token:      b.Token,
		User:       b.User,
		ServerName:         b.ServerName,
		CAFile:             b.CAFile,
		InsecureSkipVerify: b.Insecure,
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s fails %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s fails %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// PayloadSchema returns the JSON Schema of the bootstrap payload
func PayloadSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Bootstrap{})

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return out, nil
}
