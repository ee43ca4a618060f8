package codec

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hostlink/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "array": [123, "def"],
  "bool": true,
  "f64": 1.2,
  "i64": -5,
  "obj": {"a": "b"},
  "string": "abc",
  "u64": 10,
  "none": null
}`

const sampleYAML = `
array: [123, def]
bool: true
f64: 1.2
i64: -5
obj:
  a: b
string: abc
u64: 10
none: ~
`

func TestJSONAndYAMLAgree(t *testing.T) {
	fromJSON, err := NewJSONCodec().Parse(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	fromYAML, err := NewYAMLCodec().Parse(strings.NewReader(sampleYAML))
	require.NoError(t, err)

	assert.True(t, fromJSON.Equal(fromYAML), "json = %s\nyaml = %s", fromJSON, fromYAML)

	i64, ok := fromJSON.Pointer("/i64")
	require.True(t, ok)
	assert.Equal(t, domain.KindInteger, i64.Kind())
	f64, _ := fromYAML.Pointer("/f64")
	assert.Equal(t, domain.KindFloat, f64.Kind())
}

func TestJSONParseErrors(t *testing.T) {
	for _, in := range []string{`{"a":`, `{"a":1} {"b":2}`, `18446744073709551615`} {
		_, err := NewJSONCodec().Parse(strings.NewReader(in))
		require.Error(t, err, "input %q", in)
		assert.Equal(t, domain.DecodeError, domain.KindOf(err), "input %q", in)
	}
}

func TestYAMLScalarTags(t *testing.T) {
	v, err := NewYAMLCodec().Parse(strings.NewReader(`
hex: 0x1F
quoted: "42"
yes_string: yes
stamp: 2024-01-02
anchor: &base {x: 1}
alias: *base
`))
	require.NoError(t, err)

	hex, _ := v.Get("hex")
	assert.True(t, hex.Equal(domain.NewInt(31)))
	quoted, _ := v.Get("quoted")
	assert.True(t, quoted.Equal(domain.NewString("42")))
	yes, _ := v.Get("yes_string")
	assert.Equal(t, domain.KindString, yes.Kind())
	stamp, _ := v.Get("stamp")
	assert.True(t, stamp.Equal(domain.NewString("2024-01-02")))
	alias, _ := v.Get("alias")
	anchor, _ := v.Get("anchor")
	assert.True(t, alias.Equal(anchor))
}

func TestYAMLParseErrors(t *testing.T) {
	_, err := NewYAMLCodec().Parse(strings.NewReader("big: 18446744073709551615"))
	assert.Equal(t, domain.DecodeError, domain.KindOf(err))

	_, err = NewYAMLCodec().Parse(strings.NewReader("? [a, b]\n: c\n"))
	assert.Equal(t, domain.UnsupportedType, domain.KindOf(err))

	_, err = NewYAMLCodec().Parse(strings.NewReader("a: [1, 2"))
	assert.Equal(t, domain.DecodeError, domain.KindOf(err))
}

func TestYAMLEmptyDocumentIsNull(t *testing.T) {
	v, err := NewYAMLCodec().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestExportParseRoundTrip(t *testing.T) {
	v := domain.MustFromAny(map[string]any{
		"name": "web-1", "cpus": 4, "load": 0.5, "tags": []any{"a", "b"}, "none": nil,
	})
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			c, err := ForFormat(format)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, c.Export(v, &buf))
			back, err := c.Parse(&buf)
			require.NoError(t, err)
			assert.True(t, back.Equal(v), "got %s", back)
		})
	}

	_, err := ForFormat("xml")
	assert.Equal(t, domain.UnsupportedType, domain.KindOf(err))
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "facts.json")
	yamlPath := filepath.Join(dir, "facts.yaml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte(sampleYAML), 0o644))

	a, err := OpenFile(jsonPath)
	require.NoError(t, err)
	b, err := OpenFile(yamlPath)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	_, err = OpenFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = OpenFile(bad)
	assert.Equal(t, domain.DecodeError, domain.KindOf(err))
	assert.Contains(t, err.Error(), bad)
}

// aliasBomb nests levels of ten-fold aliases
func aliasBomb(levels int) string {
	var sb strings.Builder
	sb.WriteString("l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= levels; i++ {
		refs := make([]string, 10)
		for j := range refs {
			refs[j] = fmt.Sprintf("*l%d", i-1)
		}
		fmt.Fprintf(&sb, "l%d: &l%d [%s]\n", i, i, strings.Join(refs, ", "))
	}
	return sb.String()
}

func TestYAMLAliasExpansionIsBounded(t *testing.T) {
	_, err := NewYAMLCodec().Parse(strings.NewReader(aliasBomb(7)))
	require.Error(t, err)
	assert.Equal(t, domain.DecodeError, domain.KindOf(err))
	assert.Contains(t, err.Error(), "aliases expand past")

	path := filepath.Join(t.TempDir(), "bomb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(aliasBomb(7)), 0o644))
	_, err = OpenFile(path)
	assert.Equal(t, domain.DecodeError, domain.KindOf(err))
}

func TestYAMLAliasesWithinBudget(t *testing.T) {
	v, err := NewYAMLCodec().Parse(strings.NewReader(aliasBomb(2)))
	require.NoError(t, err)
	l2, ok := v.Get("l2")
	require.True(t, ok)
	assert.Equal(t, 10, l2.Len())

	v, err = NewYAMLCodec().Parse(strings.NewReader("base: &b {a: 1}\nx: *b\ny: *b\n"))
	require.NoError(t, err)
	x, _ := v.Get("x")
	y, _ := v.Get("y")
	assert.True(t, x.Equal(y))
}

const sampleInventory = `
all:
  vars:
    env: lab
  hosts:
    gateway:
      ansible_host: 10.0.0.1
  children:
    servers:
      vars:
        role: compute
      hosts:
        web-1:
          ansible_host: 10.0.0.5
          hostlink_port: 7200
        web-2: {}
    storage:
      hosts:
        web-1:
          ansible_host: 10.9.9.9
`

func TestParseInventory(t *testing.T) {
	hosts, err := ParseInventory(strings.NewReader(sampleInventory))
	require.NoError(t, err)
	require.Len(t, hosts, 3)

	assert.Equal(t, "gateway", hosts[0].Name)
	assert.Equal(t, "all", hosts[0].Group)

	web1 := hosts[1]
	assert.Equal(t, "web-1", web1.Name)
	assert.Equal(t, "10.0.0.5", web1.Address)
	assert.Equal(t, 7200, web1.Port)
	assert.Equal(t, "servers", web1.Group)
	role, _ := web1.Vars.Get("role")
	assert.True(t, role.Equal(domain.NewString("compute")))
	env, _ := web1.Vars.Get("env")
	assert.True(t, env.Equal(domain.NewString("lab")))

	web2 := hosts[2]
	assert.Equal(t, "web-2", web2.Address, "address falls back to host name")
	assert.Zero(t, web2.Port)
}

func TestParseInventoryInvalid(t *testing.T) {
	_, err := ParseInventory(strings.NewReader("all: [1, 2]"))
	assert.Equal(t, domain.InvalidPayload, domain.KindOf(err))
}
