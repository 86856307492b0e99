package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/solpm/internal/ir"
)

//go:embed manifest.cue
var manifestSchema string

// Format is the on-disk encoding of a manifest.
type Format int

const (
	JSON Format = iota
	YAML
)

func (f Format) String() string {
	if f == YAML {
		return "yaml"
	}
	return "json"
}

// FormatFor picks the format from the file extension: .yaml and .yml are
// YAML, everything else JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

type document struct {
	Programs    map[string]Record `json:"programs" yaml:"programs"`
	DevPrograms map[string]Record `json:"devPrograms" yaml:"devPrograms"`
}

// Marshal encodes m deterministically: sorted keys, two-space indentation
// and a trailing newline.
func Marshal(m *Manifest, format Format) ([]byte, error) {
	doc := document{Programs: m.Group(Regular), DevPrograms: m.Group(Development)}

	switch format {
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// Unmarshal decodes a manifest document. The document is checked against
// the embedded schema before it is decoded.
func Unmarshal(data []byte, format Format) (*Manifest, error) {
	if err := checkShape(data, format); err != nil {
		return nil, err
	}

	var doc document
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}

	m := New()
	for _, g := range Groups {
		src := doc.Programs
		if g == Development {
			src = doc.DevPrograms
		}
		for name, rec := range src {
			n, err := ir.ParseNetwork(string(rec.Network))
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", g.Key(), name, err)
			}
			rec.Network = n
			m.Set(g, name, rec)
		}
	}
	return m, nil
}

func checkShape(data []byte, format Format) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(manifestSchema, cue.Filename("manifest.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal error: compile manifest schema: %w", err)
	}

	var doc cue.Value
	switch format {
	case YAML:
		if len(bytes.TrimSpace(data)) == 0 {
			return errors.New("empty document")
		}
		f, err := cueyaml.Extract("manifest.yaml", data)
		if err != nil {
			return err
		}
		doc = ctx.BuildFile(f)
	default:
		expr, err := cuejson.Extract("manifest.json", data)
		if err != nil {
			return err
		}
		doc = ctx.BuildExpr(expr)
	}
	if err := doc.Err(); err != nil {
		return err
	}

	unified := schema.LookupPath(cue.ParsePath("#Manifest")).Unify(doc)
	return unified.Validate(cue.Concrete(true))
}
