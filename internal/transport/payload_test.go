package transport

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"hostlink/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBootstrap(t *testing.T) {
	b, err := ParseBootstrap([]byte(`
version: 1
transport: TLS
endpoint: agent.lab:7101
token: abc
server_name: agent.internal
`))
	require.NoError(t, err)
	assert.Equal(t, domain.TransportDescriptor{
		Transport:  domain.TransportTLS,
		Token:      "abc",
		ServerName: "agent.internal",
	}, b.Descriptor())
	assert.Equal(t, "agent.lab:7101", b.Endpoint)
	assert.Nil(t, b.Data)
}

func TestParseBootstrapInlineData(t *testing.T) {
	b, err := ParseBootstrap([]byte(`{"data": [1, "two", {"three": 3.5}]}`))
	require.NoError(t, err)
	require.NotNil(t, b.Data)

	v, err := b.Data.Value()
	require.NoError(t, err)
	want := domain.NewArray(
		domain.NewInt(1),
		domain.NewString("two"),
		domain.NewMap(map[string]domain.Value{"three": domain.NewFloat(3.5)}),
	)
	assert.True(t, v.Equal(want), "got %s", v)
}

func TestParseBootstrapErrorsNameTheField(t *testing.T) {
	_, err := ParseBootstrap([]byte(`{"endpoint": "h:1", "transport": "quic"}`))
	require.Error(t, err)
	assert.Equal(t, domain.InvalidPayload, domain.KindOf(err))
	assert.Contains(t, err.Error(), "transport fails oneof")
}

func TestPayloadSchema(t *testing.T) {
	out, err := PayloadSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(out, &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has no properties: %s", out)
	for _, field := range []string{"version", "transport", "endpoint", "token", "data"} {
		assert.Contains(t, props, field)
	}
}

func TestParseBootstrapRejectsAliasBomb(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("data:\n  l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= 7; i++ {
		refs := make([]string, 10)
		for j := range refs {
			refs[j] = fmt.Sprintf("*l%d", i-1)
		}
		fmt.Fprintf(&sb, "  l%d: &l%d [%s]\n", i, i, strings.Join(refs, ", "))
	}

	_, err := ParseBootstrap([]byte(sb.String()))
	require.Error(t, err)
	assert.Equal(t, domain.InvalidPayload, domain.KindOf(err))
	assert.Contains(t, err.Error(), "aliases expand past")
}
