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

/*
Package lp holds the data shared by the orchestrator and its numerical
collaborators: the column-compressed Model, solutions, bases, statuses and
the working copies the solve pipeline operates on.

A model of the form

	Minimize (or Maximize): ColCost · x + Offset
	Subject to:             RowLower ≤ A·x ≤ RowUpper
	And:                    ColLower ≤ x ≤ ColUpper

stores A column-wise: the entries of column j are AIndex[AStart[j]:AStart[j+1]]
(row indices) and AValue[AStart[j]:AStart[j+1]].
*/
package lp

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

/* Types */

// Sense is the optimization direction of a model.
type Sense int

const (
	Minimize Sense = 1
	Maximize Sense = -1
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Nonzero is a single matrix entry, used to build models from triplets.
type Nonzero struct {
	Row int
	Col int
	Val float64
}

// Model is a linear program in column-compressed form.
type Model struct {
	Name   string
	NumCol int
	NumRow int

	ColCost  []float64
	ColLower []float64
	ColUpper []float64
	RowLower []float64
	RowUpper []float64

	AStart []int
	AIndex []int
	AValue []float64

	Sense  Sense
	Offset float64

	// ColNames and RowNames are optional; when set they must have NumCol
	// and NumRow entries respectively.
	ColNames []string
	RowNames []string
}

// Inf returns positive infinity, suitable for unbounded variable bounds.
func Inf() float64 {
	return math.Inf(1)
}

// NegInf returns negative infinity, suitable for unbounded variable bounds.
func NegInf() float64 {
	return math.Inf(-1)
}

/* Model construction */

// NewModel returns a minimization model with numCol columns bounded to
// [0, +inf), zero costs, numRow free rows and an empty matrix.
func NewModel(numCol, numRow int) *Model {
	m := &Model{
		NumCol:   numCol,
		NumRow:   numRow,
		ColCost:  make([]float64, numCol),
		ColLower: make([]float64, numCol),
		ColUpper: filled(numCol, math.Inf(1)),
		RowLower: filled(numRow, math.Inf(-1)),
		RowUpper: filled(numRow, math.Inf(1)),
		AStart:   make([]int, numCol+1),
		Sense:    Minimize,
	}
	return m
}

// FromTriplets builds the column-compressed matrix of the model from a list
// of nonzeros, replacing any matrix the model already had. Duplicate
// entries keep the last value; explicit zeros are dropped.
func (m *Model) FromTriplets(nz []Nonzero) error {
	sorted := make([]Nonzero, len(nz))
	copy(sorted, nz)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Col != sorted[j].Col {
			return sorted[i].Col < sorted[j].Col
		}
		return sorted[i].Row < sorted[j].Row
	})

	filtered := make([]Nonzero, 0, len(sorted))
	for _, n := range sorted {
		if n.Row < 0 || n.Row >= m.NumRow || n.Col < 0 || n.Col >= m.NumCol {
			return newError("FromTriplets", ErrModel, fmt.Sprintf("entry (%d, %d) outside %dx%d matrix", n.Row, n.Col, m.NumRow, m.NumCol))
		}
		if len(filtered) > 0 && filtered[len(filtered)-1].Row == n.Row && filtered[len(filtered)-1].Col == n.Col {
			filtered[len(filtered)-1].Val = n.Val
		} else {
			filtered = append(filtered, n)
		}
	}

	m.AStart = make([]int, m.NumCol+1)
	m.AIndex = make([]int, 0, len(filtered))
	m.AValue = make([]float64, 0, len(filtered))
	for _, n := range filtered {
		if n.Val == 0 {
			continue
		}
		m.AIndex = append(m.AIndex, n.Row)
		m.AValue = append(m.AValue, n.Val)
		m.AStart[n.Col+1]++
	}
	for j := 0; j < m.NumCol; j++ {
		m.AStart[j+1] += m.AStart[j]
	}

	return nil
}

// AddDenseRow appends a row lower ≤ coeffs·x ≤ upper. Zero coefficients are
// skipped.
func (m *Model) AddDenseRow(lower float64, coeffs []float64, upper float64) error {
	cols := make([]int, 0, len(coeffs))
	vals := make([]float64, 0, len(coeffs))
	for j, v := range coeffs {
		if v != 0 {
			cols = append(cols, j)
			vals = append(vals, v)
		}
	}
	return m.AddSparseRow(lower, cols, vals, upper)
}

// AddSparseRow appends a row lower ≤ Σ vals[k]·x[cols[k]] ≤ upper.
func (m *Model) AddSparseRow(lower float64, cols []int, vals []float64, upper float64) error {
	if len(cols) != len(vals) {
		return newError("AddSparseRow", ErrModel, fmt.Sprintf("inconsistent number of columns and values: %d != %d", len(cols), len(vals)))
	}
	return m.AddRows([]float64{lower}, []float64{upper}, []int{0}, cols, vals)
}

/* Accessors */

// NumNonzero returns the number of stored matrix entries.
func (m *Model) NumNonzero() int {
	if len(m.AStart) == 0 {
		return 0
	}
	return m.AStart[m.NumCol]
}

// Column returns the row indices and values of column j. The slices alias
// the model's storage.
func (m *Model) Column(j int) ([]int, []float64) {
	return m.AIndex[m.AStart[j]:m.AStart[j+1]], m.AValue[m.AStart[j]:m.AStart[j+1]]
}

// RowActivity computes A·x.
func (m *Model) RowActivity(x []float64) []float64 {
	r := make([]float64, m.NumRow)
	for j := 0; j < m.NumCol; j++ {
		if x[j] == 0 {
			continue
		}
		for k := m.AStart[j]; k < m.AStart[j+1]; k++ {
			r[m.AIndex[k]] += m.AValue[k] * x[j]
		}
	}
	return r
}

// Objective evaluates ColCost·x + Offset.
func (m *Model) Objective(x []float64) float64 {
	obj := m.Offset
	for j, c := range m.ColCost {
		obj += c * x[j]
	}
	return obj
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	return &Model{
		Name:     m.Name,
		NumCol:   m.NumCol,
		NumRow:   m.NumRow,
		ColCost:  slices.Clone(m.ColCost),
		ColLower: slices.Clone(m.ColLower),
		ColUpper: slices.Clone(m.ColUpper),
		RowLower: slices.Clone(m.RowLower),
		RowUpper: slices.Clone(m.RowUpper),
		AStart:   slices.Clone(m.AStart),
		AIndex:   slices.Clone(m.AIndex),
		AValue:   slices.Clone(m.AValue),
		Sense:    m.Sense,
		Offset:   m.Offset,
		ColNames: slices.Clone(m.ColNames),
		RowNames: slices.Clone(m.RowNames),
	}
}

/* Validation */

// Validate checks the structural consistency of the model. The returned
// error wraps ErrModel.
func (m *Model) Validate() error {
	fail := func(format string, args ...any) error {
		return newError("Validate", ErrModel, fmt.Sprintf(format, args...))
	}

	if m.NumCol < 0 || m.NumRow < 0 {
		return fail("negative dimensions %dx%d", m.NumRow, m.NumCol)
	}
	if m.Sense != Minimize && m.Sense != Maximize {
		return fail("unknown objective sense %d", m.Sense)
	}
	for name, n := range map[string]int{
		"ColCost":  len(m.ColCost),
		"ColLower": len(m.ColLower),
		"ColUpper": len(m.ColUpper),
	} {
		if n != m.NumCol {
			return fail("%s has %d entries, want %d", name, n, m.NumCol)
		}
	}
	if len(m.RowLower) != m.NumRow || len(m.RowUpper) != m.NumRow {
		return fail("row bounds have %d/%d entries, want %d", len(m.RowLower), len(m.RowUpper), m.NumRow)
	}
	if m.ColNames != nil && len(m.ColNames) != m.NumCol {
		return fail("ColNames has %d entries, want %d", len(m.ColNames), m.NumCol)
	}
	if m.RowNames != nil && len(m.RowNames) != m.NumRow {
		return fail("RowNames has %d entries, want %d", len(m.RowNames), m.NumRow)
	}
	if math.IsNaN(m.Offset) || math.IsInf(m.Offset, 0) {
		return fail("objective offset is %v", m.Offset)
	}

	for j := 0; j < m.NumCol; j++ {
		if err := checkBounds(m.ColLower[j], m.ColUpper[j]); err != "" {
			return fail("column %d: %s", j, err)
		}
		if math.IsNaN(m.ColCost[j]) || math.IsInf(m.ColCost[j], 0) {
			return fail("column %d: cost is %v", j, m.ColCost[j])
		}
	}
	for i := 0; i < m.NumRow; i++ {
		if err := checkBounds(m.RowLower[i], m.RowUpper[i]); err != "" {
			return fail("row %d: %s", i, err)
		}
	}

	if len(m.AStart) != m.NumCol+1 {
		return fail("AStart has %d entries, want %d", len(m.AStart), m.NumCol+1)
	}
	if m.AStart[0] != 0 {
		return fail("AStart[0] is %d, want 0", m.AStart[0])
	}
	nnz := m.AStart[m.NumCol]
	if len(m.AIndex) != nnz || len(m.AValue) != nnz {
		return fail("matrix has %d indices and %d values, want %d", len(m.AIndex), len(m.AValue), nnz)
	}

	seen := make([]int, m.NumRow)
	for i := range seen {
		seen[i] = -1
	}
	for j := 0; j < m.NumCol; j++ {
		if m.AStart[j+1] < m.AStart[j] {
			return fail("AStart decreases at column %d", j)
		}
		for k := m.AStart[j]; k < m.AStart[j+1]; k++ {
			i := m.AIndex[k]
			if i < 0 || i >= m.NumRow {
				return fail("column %d: row index %d out of range", j, i)
			}
			if seen[i] == j {
				return fail("column %d: duplicate row index %d", j, i)
			}
			seen[i] = j
			if math.IsNaN(m.AValue[k]) || math.IsInf(m.AValue[k], 0) {
				return fail("column %d: entry for row %d is %v", j, i, m.AValue[k])
			}
		}
	}

	return nil
}

func checkBounds(lower, upper float64) string {
	switch {
	case math.IsNaN(lower) || math.IsNaN(upper):
		return "NaN bound"
	case math.IsInf(lower, 1):
		return "lower bound is +inf"
	case math.IsInf(upper, -1):
		return "upper bound is -inf"
	case lower > upper:
		return fmt.Sprintf("lower bound %g exceeds upper bound %g", lower, upper)
	}
	return ""
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
