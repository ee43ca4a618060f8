package codec

import (
	"fmt"
	"io"

	"hostlink/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles generic YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse reads the first YAML document. An empty stream is Null.
func (c *YAMLCodec) Parse(r io.Reader) (domain.Value, error) {
	var root yaml.Node
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&root); err != nil {
		if err == io.EOF {
			return domain.NewNull(), nil
		}
		return domain.Value{}, domain.Wrap(domain.DecodeError, err, "failed to parse YAML")
	}
	return FromYAMLNode(&root)
}

// Alias expansion is bounded so a small document cannot unfold into a huge
// value. A document may visit minNodeBudget nodes plus aliasExpansionRatio
// times its own node count.
const (
	minNodeBudget       = 10000
	aliasExpansionRatio = 10
)

// FromYAMLNode converts a decoded YAML node tree into a Value. Scalars are
// typed by their resolved tag, aliases are followed. A document whose
// aliases expand past the node budget fails with DecodeError.
func FromYAMLNode(n *yaml.Node) (domain.Value, error) {
	c := &nodeConverter{budget: minNodeBudget + aliasExpansionRatio*countNodes(n)}
	return c.convert(n, 0)
}

// countNodes counts the nodes of the tree without following aliases
func countNodes(n *yaml.Node) int {
	if n == nil {
		return 0
	}
	total := 1
	for _, child := range n.Content {
		total += countNodes(child)
	}
	return total
}

type nodeConverter struct {
	visited int
	budget  int
}

func (c *nodeConverter) convert(n *yaml.Node, depth int) (domain.Value, error) {
	if depth > MaxDepth {
		return domain.Value{}, domain.Errorf(domain.DecodeError, "YAML nesting deeper than %d", MaxDepth)
	}
	c.visited++
	if c.visited > c.budget {
		return domain.Value{}, domain.Errorf(domain.DecodeError, "YAML aliases expand past %d nodes", c.budget)
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return domain.NewNull(), nil
		}
		return c.convert(n.Content[0], depth)
	case yaml.AliasNode:
		return c.convert(n.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]domain.Value, 0, len(n.Content))
		for i, child := range n.Content {
			v, err := c.convert(child, depth+1)
			if err != nil {
				return domain.Value{}, prefix(err, "line %d item %d", n.Line, i)
			}
			items = append(items, v)
		}
		return domain.NewArray(items...), nil
	case yaml.MappingNode:
		entries := make(map[string]domain.Value, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return domain.Value{}, domain.Errorf(domain.UnsupportedType, "line %d: non-scalar map key", keyNode.Line)
			}
			v, err := c.convert(valNode, depth+1)
			if err != nil {
				return domain.Value{}, prefix(err, "key %q", keyNode.Value)
			}
			entries[keyNode.Value] = v
		}
		return domain.NewMap(entries), nil
	case yaml.ScalarNode:
		return fromYAMLScalar(n)
	}
	return domain.Value{}, domain.Errorf(domain.UnsupportedType, "line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}

func fromYAMLScalar(n *yaml.Node) (domain.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return domain.NewNull(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return domain.Value{}, domain.Wrap(domain.DecodeError, err, fmt.Sprintf("line %d", n.Line))
		}
		return domain.NewBool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return domain.Value{}, domain.Wrap(domain.DecodeError, err, fmt.Sprintf("line %d: integer out of range", n.Line))
		}
		return domain.NewInt(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return domain.Value{}, domain.Wrap(domain.DecodeError, err, fmt.Sprintf("line %d", n.Line))
		}
		return domain.NewFloat(f), nil
	case "!!str", "!!timestamp", "!!binary":
		return domain.NewString(n.Value), nil
	}
	return domain.Value{}, domain.Errorf(domain.UnsupportedType, "line %d: unsupported YAML tag %s", n.Line, n.ShortTag())
}

// Export writes v as YAML
func (c *YAMLCodec) Export(v domain.Value, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(v.ToAny()); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
