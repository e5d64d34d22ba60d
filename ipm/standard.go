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

package ipm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/costela/lpcore/lp"
)

// varMap expresses a model variable in standard form variables:
// v = offset + z[pos] - z[neg], where a negative index is absent.
type varMap struct {
	offset float64
	pos    int
	neg    int
}

func (v varMap) value(z []float64) float64 {
	val := v.offset
	if v.pos >= 0 {
		val += z[v.pos]
	}
	if v.neg >= 0 {
		val -= z[v.neg]
	}
	return val
}

// standardForm is min c·z s.t. A·z = b, z ≥ 0 equivalent to a model whose
// columns and row activities are the variables v_0..v_{n+m-1}. The first
// NumRow rows of A state Σ_j a_ij v_j - v_{n+i} = 0.
type standardForm struct {
	a      *mat.Dense
	b, c   []float64
	offset float64
	vars   []varMap
	numRow int
}

func newStandardForm(m *lp.Model) *standardForm {
	n := m.NumCol
	sf := &standardForm{
		vars:   make([]varMap, n+m.NumRow),
		numRow: m.NumRow,
	}

	lower := func(k int) float64 {
		if k < n {
			return m.ColLower[k]
		}
		return m.RowLower[k-n]
	}
	upper := func(k int) float64 {
		if k < n {
			return m.ColUpper[k]
		}
		return m.RowUpper[k-n]
	}

	numZ := 0
	type boundRow struct {
		z     int
		slack int
		width float64
	}
	var boundRows []boundRow
	for k := range sf.vars {
		lo, hi := lower(k), upper(k)
		v := varMap{pos: -1, neg: -1}
		switch {
		case lo == hi:
			v.offset = lo
		case lo > lp.NegInf():
			v.offset, v.pos = lo, numZ
			numZ++
			if hi < lp.Inf() {
				boundRows = append(boundRows, boundRow{z: v.pos, slack: numZ, width: hi - lo})
				numZ++
			}
		case hi < lp.Inf():
			v.offset, v.neg = hi, numZ
			numZ++
		default:
			v.pos, v.neg = numZ, numZ+1
			numZ += 2
		}
		sf.vars[k] = v
	}

	numStdRow := m.NumRow + len(boundRows)
	sf.b = make([]float64, numStdRow)
	sf.c = make([]float64, numZ)
	if numStdRow > 0 && numZ > 0 {
		sf.a = mat.NewDense(numStdRow, numZ, nil)
	}

	addTerm := func(row int, v varMap, coeff float64) {
		sf.b[row] -= coeff * v.offset
		if v.pos >= 0 {
			sf.a.Set(row, v.pos, sf.a.At(row, v.pos)+coeff)
		}
		if v.neg >= 0 {
			sf.a.Set(row, v.neg, sf.a.At(row, v.neg)-coeff)
		}
	}

	if sf.a != nil {
		for j := 0; j < n; j++ {
			rows, vals := m.Column(j)
			for k, i := range rows {
				addTerm(i, sf.vars[j], vals[k])
			}
		}
		for i := 0; i < m.NumRow; i++ {
			addTerm(i, sf.vars[n+i], -1)
		}
		for r, br := range boundRows {
			row := m.NumRow + r
			sf.a.Set(row, br.z, 1)
			sf.a.Set(row, br.slack, 1)
			sf.b[row] = br.width
		}
	}

	sense := float64(m.Sense)
	for j := 0; j < n; j++ {
		cj := sense * m.ColCost[j]
		v := sf.vars[j]
		sf.offset += cj * v.offset
		if v.pos >= 0 {
			sf.c[v.pos] += cj
		}
		if v.neg >= 0 {
			sf.c[v.neg] -= cj
		}
	}

	return sf
}

// columnValues recovers the model's column values from z.
func (sf *standardForm) columnValues(z []float64, numCol int) []float64 {
	x := make([]float64, numCol)
	for j := range x {
		x[j] = sf.vars[j].value(z)
	}
	return x
}
