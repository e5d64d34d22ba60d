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
	"math"

	"github.com/costela/lpcore/lp"
)

// scaling holds power-of-two row and column factors such that the scaled
// matrix is R·A·C and scaled column values are x/C.
type scaling struct {
	row []float64
	col []float64
}

// computeScaling equilibrates rows then columns by the geometric mean of
// their extreme magnitudes. It returns nil when no factor differs from one.
func computeScaling(m *lp.Model) *scaling {
	s := &scaling{
		row: make([]float64, m.NumRow),
		col: make([]float64, m.NumCol),
	}

	rowMin := make([]float64, m.NumRow)
	rowMax := make([]float64, m.NumRow)
	for i := range rowMin {
		rowMin[i] = math.Inf(1)
	}
	for k, i := range m.AIndex[:m.NumNonzero()] {
		v := math.Abs(m.AValue[k])
		rowMin[i] = math.Min(rowMin[i], v)
		rowMax[i] = math.Max(rowMax[i], v)
	}
	for i := range s.row {
		s.row[i] = 1
		if rowMax[i] > 0 {
			s.row[i] = powerOfTwo(1 / math.Sqrt(rowMin[i]*rowMax[i]))
		}
	}

	scaled := false
	for j := 0; j < m.NumCol; j++ {
		lo, hi := math.Inf(1), 0.0
		rows, vals := m.Column(j)
		for k, i := range rows {
			v := math.Abs(vals[k]) * s.row[i]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		s.col[j] = 1
		if hi > 0 {
			s.col[j] = powerOfTwo(1 / math.Sqrt(lo*hi))
		}
		scaled = scaled || s.col[j] != 1
	}
	for _, r := range s.row {
		scaled = scaled || r != 1
	}

	if !scaled {
		return nil
	}
	return s
}

func powerOfTwo(v float64) float64 {
	return math.Exp2(math.Round(math.Log2(v)))
}

// apply returns the scaled copy of m.
func (s *scaling) apply(m *lp.Model) *lp.Model {
	sm := m.Clone()
	for j := 0; j < sm.NumCol; j++ {
		c := s.col[j]
		sm.ColCost[j] *= c
		sm.ColLower[j] /= c
		sm.ColUpper[j] /= c
		for k := sm.AStart[j]; k < sm.AStart[j+1]; k++ {
			sm.AValue[k] *= s.row[sm.AIndex[k]] * c
		}
	}
	for i := 0; i < sm.NumRow; i++ {
		sm.RowLower[i] *= s.row[i]
		sm.RowUpper[i] *= s.row[i]
	}
	return sm
}

// unscaleColumns maps scaled column values back to the original model.
func (s *scaling) unscaleColumns(x []float64) {
	for j := range s.col {
		x[j] *= s.col[j]
	}
}
