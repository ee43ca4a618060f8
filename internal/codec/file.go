package codec

import (
	"os"
	"path/filepath"
	"strings"

	"hostlink/internal/domain"
)

// OpenFile reads a JSON or YAML data file into a Value, picking the format
// from the file extension. Unknown extensions are read as YAML, which also
// accepts JSON.
func OpenFile(path string) (domain.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Value{}, domain.Wrap(domain.Internal, err, "open data file")
	}
	defer f.Close()

	var p Parser = NewYAMLCodec()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		p = NewJSONCodec()
	}
	v, err := p.Parse(f)
	if err != nil {
		e := domain.Classify(err)
		return domain.Value{}, domain.Errorf(e.Kind, "%s: %s", path, e.Message)
	}
	return v, nil
}
