// Package decl reads declaration files that name structures, aggregates and
// vectors, and resolves them into types.
package decl

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	ErrFormat        = errors.New("unsupported declaration format")
	ErrUnknownKey    = errors.New("unknown key")
	ErrUnknownType   = errors.New("unknown type")
	ErrUnknownKind   = errors.New("unknown aggregate kind")
	ErrDuplicateName = errors.New("duplicate name")
	ErrCycle         = errors.New("structure contains itself by value")
)

type FieldDecl struct {
	Name string `toml:"name" yaml:"name"`
	Type string `toml:"type" yaml:"type"`
}

type StructDecl struct {
	Name   string      `toml:"name" yaml:"name"`
	Fields []FieldDecl `toml:"fields" yaml:"fields"`
}

// AggregateDecl declares a pointer, array or slice. Shape uses the
// textual form of types.ParseShape, e.g. "?,3,3".
type AggregateDecl struct {
	Name  string `toml:"name" yaml:"name"`
	Kind  string `toml:"kind" yaml:"kind"`
	Elem  string `toml:"elem" yaml:"elem"`
	Shape string `toml:"shape" yaml:"shape"`
}

type VectorDecl struct {
	Name  string `toml:"name" yaml:"name"`
	Elem  string `toml:"elem" yaml:"elem"`
	Lanes int    `toml:"lanes" yaml:"lanes"`
}

// File is the decoded form of a declaration file.
type File struct {
	Structs    []StructDecl    `toml:"structs" yaml:"structs"`
	Aggregates []AggregateDecl `toml:"aggregates" yaml:"aggregates"`
	Vectors    []VectorDecl    `toml:"vectors" yaml:"vectors"`
}

type Format int

const (
	TOML Format = iota
	YAML
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrFormat, path)
}

// Load reads and decodes a declaration file.
func Load(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes declarations. Keys that match no declaration field are
// rejected rather than ignored.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case TOML:
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, undecoded[0])
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrFormat, format)
	}
	return &f, nil
}
