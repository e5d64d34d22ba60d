/*
Copyright © 2015-2022 Leo Antunes <leo@costela.net>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package modelio reads and writes LP models as YAML documents:
//
//	name: example
//	sense: minimize
//	columns:
//	  - {name: x, cost: 1}
//	  - {name: y, cost: 1, upper: 4}
//	rows:
//	  - {name: demand, lower: 1, terms: {x: 1, y: 1}}
//
// Columns default to [0, +inf) and rows to (-inf, +inf). Infinite bounds are
// written as .inf and -.inf.
package modelio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/costela/lpcore/lp"
)

var ErrUnknownColumn = errors.New("unknown column")

type document struct {
	Name    string   `yaml:"name,omitempty"`
	Sense   string   `yaml:"sense,omitempty"`
	Offset  float64  `yaml:"offset,omitempty"`
	Columns []column `yaml:"columns"`
	Rows    []row    `yaml:"rows,omitempty"`
}

type column struct {
	Name  string   `yaml:"name"`
	Cost  float64  `yaml:"cost,omitempty"`
	Lower *float64 `yaml:"lower,omitempty"`
	Upper *float64 `yaml:"upper,omitempty"`
}

type row struct {
	Name  string             `yaml:"name,omitempty"`
	Lower *float64           `yaml:"lower,omitempty"`
	Upper *float64           `yaml:"upper,omitempty"`
	Terms map[string]float64 `yaml:"terms,omitempty"`
}

// FileReader loads models from YAML files.
type FileReader struct{}

// ReadModel reads and validates the model stored at path.
func (FileReader) ReadModel(path string) (*lp.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return m, nil
}

// Decode parses a YAML model from r and validates it.
func Decode(r io.Reader) (*lp.Model, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding model: %w", err)
	}

	m := lp.NewModel(len(doc.Columns), len(doc.Rows))
	m.Name = doc.Name
	m.Offset = doc.Offset
	switch doc.Sense {
	case "", "minimize", "min":
		m.Sense = lp.Minimize
	case "maximize", "max":
		m.Sense = lp.Maximize
	default:
		return nil, lp.NewError("Decode", lp.ErrModel, fmt.Sprintf("unknown objective sense %q", doc.Sense))
	}

	index := make(map[string]int, len(doc.Columns))
	m.ColNames = make([]string, len(doc.Columns))
	for j, c := range doc.Columns {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("c%d", j)
		}
		if _, dup := index[name]; dup {
			return nil, lp.NewError("Decode", lp.ErrModel, fmt.Sprintf("duplicate column name %q", name))
		}
		index[name] = j
		m.ColNames[j] = name
		m.ColCost[j] = c.Cost
		if c.Lower != nil {
			m.ColLower[j] = *c.Lower
		}
		if c.Upper != nil {
			m.ColUpper[j] = *c.Upper
		}
	}

	var nz []lp.Nonzero
	m.RowNames = make([]string, len(doc.Rows))
	for i, r := range doc.Rows {
		m.RowNames[i] = r.Name
		if r.Lower != nil {
			m.RowLower[i] = *r.Lower
		}
		if r.Upper != nil {
			m.RowUpper[i] = *r.Upper
		}
		for name, v := range r.Terms {
			j, ok := index[name]
			if !ok {
				return nil, fmt.Errorf("row %d: %w %q", i, ErrUnknownColumn, name)
			}
			nz = append(nz, lp.Nonzero{Row: i, Col: j, Val: v})
		}
	}
	if err := m.FromTriplets(nz); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// Encode writes m to w. Columns without a name are written as c<index>.
func Encode(w io.Writer, m *lp.Model) error {
	doc := document{
		Name:    m.Name,
		Sense:   "minimize",
		Offset:  m.Offset,
		Columns: make([]column, m.NumCol),
		Rows:    make([]row, m.NumRow),
	}
	if m.Sense == lp.Maximize {
		doc.Sense = "maximize"
	}

	names := make([]string, m.NumCol)
	for j := range names {
		names[j] = fmt.Sprintf("c%d", j)
		if j < len(m.ColNames) && m.ColNames[j] != "" {
			names[j] = m.ColNames[j]
		}
		doc.Columns[j] = column{
			Name:  names[j],
			Cost:  m.ColCost[j],
			Lower: unlessEqual(m.ColLower[j], 0),
			Upper: unlessEqual(m.ColUpper[j], math.Inf(1)),
		}
	}
	for i := range doc.Rows {
		doc.Rows[i] = row{
			Lower: unlessEqual(m.RowLower[i], math.Inf(-1)),
			Upper: unlessEqual(m.RowUpper[i], math.Inf(1)),
		}
		if i < len(m.RowNames) {
			doc.Rows[i].Name = m.RowNames[i]
		}
	}
	for j := 0; j < m.NumCol; j++ {
		rows, vals := m.Column(j)
		for k, i := range rows {
			if doc.Rows[i].Terms == nil {
				doc.Rows[i].Terms = make(map[string]float64)
			}
			doc.Rows[i].Terms[names[j]] = vals[k]
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return enc.Close()
}

// Marshal returns the YAML encoding of m.
func Marshal(m *lp.Model) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes m to path.
func WriteFile(path string, m *lp.Model) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func unlessEqual(v, def float64) *float64 {
	if v == def {
		return nil
	}
	return &v
}
