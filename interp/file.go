package interp

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk form of a Table.
type tableFile struct {
	Axes   [][]float64 `yaml:"axes"`
	Values []int32     `yaml:"values"`
	Scale  float64     `yaml:"scale,omitempty"`
}

// LoadTable reads a YAML table file with `axes`, `values` and an optional `scale`.
func LoadTable(path string) (*Table, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read table %q", path)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML table.
func ParseTable(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "cannot decode table")
	}
	return NewTable(file.Axes, file.Values, file.Scale)
}

// MarshalYAML encodes the table in the format read by ParseTable.
func (t *Table) MarshalYAML() (interface{}, error) {
	return tableFile{Axes: t.axes, Values: t.values, Scale: t.scale}, nil
}
