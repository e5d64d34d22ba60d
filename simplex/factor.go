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

package simplex

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/costela/lpcore/lp"
)

// maxCondition is the condition number above which a basis matrix is
// treated as singular.
const maxCondition = 1e14

// Factor is an LU factorization of a basis matrix [A I]_B. It implements
// lp.Factorization.
type Factor struct {
	numRow     int
	basicIndex []int
	lu         mat.LU
	invertible bool
}

// NewFactor factorizes the basis matrix whose i-th column is the column of
// variable basicIndex[i]. Indices at or beyond m.NumCol denote the logical
// of row basicIndex[i]-m.NumCol, whose column is the unit vector.
func NewFactor(m *lp.Model, basicIndex []int) *Factor {
	f := &Factor{
		numRow:     m.NumRow,
		basicIndex: slices.Clone(basicIndex),
	}
	if len(basicIndex) != m.NumRow {
		return f
	}
	if m.NumRow == 0 {
		f.invertible = true
		return f
	}

	b := mat.NewDense(m.NumRow, m.NumRow, nil)
	for i, v := range basicIndex {
		if v >= m.NumCol {
			b.Set(v-m.NumCol, i, 1)
			continue
		}
		rows, vals := m.Column(v)
		for k, r := range rows {
			b.Set(r, i, vals[k])
		}
	}

	f.lu.Factorize(b)
	cond := f.lu.Cond()
	f.invertible = !math.IsNaN(cond) && cond < maxCondition

	return f
}

func (f *Factor) HasInvertibleRepresentation() bool {
	return f != nil && f.invertible
}

func (f *Factor) BasicIndex() []int {
	return slices.Clone(f.basicIndex)
}

// TriangularSolve solves B·x = rhs (or Bᵀ·x = rhs), flushing entries of
// magnitude at most lp.Tiny to zero.
func (f *Factor) TriangularSolve(rhs []float64, transpose bool) ([]float64, int, []int) {
	x := f.solve(rhs, transpose)

	var indices []int
	for i, v := range x {
		if math.Abs(v) > lp.Tiny {
			indices = append(indices, i)
		} else {
			x[i] = 0
		}
	}

	return x, len(indices), indices
}

// solve returns the dense solution of B·x = rhs or Bᵀ·x = rhs.
func (f *Factor) solve(rhs []float64, transpose bool) []float64 {
	if len(rhs) != f.numRow {
		panic("simplex: right-hand side does not match basis dimension")
	}
	if !f.invertible {
		panic("simplex: solve with singular basis")
	}

	out := make([]float64, f.numRow)
	if f.numRow == 0 {
		return out
	}

	dst := mat.NewVecDense(f.numRow, out)
	b := mat.NewVecDense(f.numRow, slices.Clone(rhs))
	if err := f.lu.SolveVecTo(dst, transpose, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			panic(err)
		}
	}

	return out
}
