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

package lp

import "slices"

// Tiny is the magnitude below which computed vector entries are treated as
// zero.
const Tiny = 1e-14

/* Solution */

// Solution holds primal and dual values for columns and rows. A solution
// with no entries means "no solution".
type Solution struct {
	ColValue []float64
	ColDual  []float64
	RowValue []float64
	RowDual  []float64
}

// IsEmpty reports whether the solution carries no values at all.
func (s *Solution) IsEmpty() bool {
	return len(s.ColValue) == 0 && len(s.ColDual) == 0 && len(s.RowValue) == 0 && len(s.RowDual) == 0
}

// Consistent reports whether the solution is dimensioned for m.
func (s *Solution) Consistent(m *Model) bool {
	return len(s.ColValue) == m.NumCol && len(s.ColDual) == m.NumCol &&
		len(s.RowValue) == m.NumRow && len(s.RowDual) == m.NumRow
}

func (s *Solution) Clear() {
	*s = Solution{}
}

// Resize sizes every vector for a model of the given dimensions, keeping
// leading values and zero filling the rest.
func (s *Solution) Resize(numCol, numRow int) {
	s.ColValue = resize(s.ColValue, numCol)
	s.ColDual = resize(s.ColDual, numCol)
	s.RowValue = resize(s.RowValue, numRow)
	s.RowDual = resize(s.RowDual, numRow)
}

func (s Solution) Clone() Solution {
	return Solution{
		ColValue: slices.Clone(s.ColValue),
		ColDual:  slices.Clone(s.ColDual),
		RowValue: slices.Clone(s.RowValue),
		RowDual:  slices.Clone(s.RowDual),
	}
}

/* Basis */

// Basis tags every column and row with a BasisStatus. Only a Valid basis is
// required to be consistent with its model.
type Basis struct {
	Valid     bool
	ColStatus []BasisStatus
	RowStatus []BasisStatus
}

// Consistent reports whether the basis is dimensioned for m and has exactly
// one basic variable per row.
func (b *Basis) Consistent(m *Model) bool {
	if len(b.ColStatus) != m.NumCol || len(b.RowStatus) != m.NumRow {
		return false
	}
	return b.NumBasic() == m.NumRow
}

// NumBasic counts the Basic tags over columns and rows.
func (b *Basis) NumBasic() int {
	n := 0
	for _, s := range b.ColStatus {
		if s == BasisStatusBasic {
			n++
		}
	}
	for _, s := range b.RowStatus {
		if s == BasisStatusBasic {
			n++
		}
	}
	return n
}

func (b *Basis) Clear() {
	*b = Basis{}
}

// Invalidate marks the basis invalid and sizes its status vectors for a
// model of the given dimensions.
func (b *Basis) Invalidate(numCol, numRow int) {
	b.Valid = false
	b.ColStatus = resizeStatus(b.ColStatus, numCol)
	b.RowStatus = resizeStatus(b.RowStatus, numRow)
}

func (b Basis) Clone() Basis {
	return Basis{
		Valid:     b.Valid,
		ColStatus: slices.Clone(b.ColStatus),
		RowStatus: slices.Clone(b.RowStatus),
	}
}

// SlackBasis returns the valid basis in which every row is basic and every
// column sits at the bound closest to zero.
func SlackBasis(m *Model) Basis {
	b := Basis{
		Valid:     true,
		ColStatus: make([]BasisStatus, m.NumCol),
		RowStatus: make([]BasisStatus, m.NumRow),
	}
	for j := range b.ColStatus {
		b.ColStatus[j] = NonbasicStatus(m.ColLower[j], m.ColUpper[j], 0)
	}
	for i := range b.RowStatus {
		b.RowStatus[i] = BasisStatusBasic
	}
	return b
}

// NonbasicStatus picks the nonbasic tag for a variable with the given bounds
// whose preferred value is v.
func NonbasicStatus(lower, upper, v float64) BasisStatus {
	lowerFinite := lower > NegInf()
	upperFinite := upper < Inf()
	switch {
	case lowerFinite && upperFinite && lower == upper:
		return BasisStatusNonbasic
	case lowerFinite && upperFinite:
		if v-lower <= upper-v {
			return BasisStatusLower
		}
		return BasisStatusUpper
	case lowerFinite:
		return BasisStatusLower
	case upperFinite:
		return BasisStatusUpper
	default:
		return BasisStatusZero
	}
}

// NonbasicValue is the value a nonbasic variable takes given its status.
func NonbasicValue(status BasisStatus, lower, upper float64) float64 {
	switch status {
	case BasisStatusLower, BasisStatusNonbasic:
		if lower > NegInf() {
			return lower
		}
		if upper < Inf() {
			return upper
		}
	case BasisStatusUpper:
		if upper < Inf() {
			return upper
		}
		if lower > NegInf() {
			return lower
		}
	}
	return 0
}

/* Info */

// IterationCounts accumulates iterations over the methods of a solve.
type IterationCounts struct {
	Simplex   int
	IPM       int
	Crossover int
}

func (c IterationCounts) Add(o IterationCounts) IterationCounts {
	return IterationCounts{
		Simplex:   c.Simplex + o.Simplex,
		IPM:       c.IPM + o.IPM,
		Crossover: c.Crossover + o.Crossover,
	}
}

func (c IterationCounts) Sub(o IterationCounts) IterationCounts {
	return IterationCounts{
		Simplex:   c.Simplex - o.Simplex,
		IPM:       c.IPM - o.IPM,
		Crossover: c.Crossover - o.Crossover,
	}
}

// Info holds scalar information about the current solution.
type Info struct {
	ObjectiveValue float64
	PrimalStatus   SolutionStatus
	DualStatus     SolutionStatus

	NumPrimalInfeasibilities int
	MaxPrimalInfeasibility   float64
	SumPrimalInfeasibilities float64
	NumDualInfeasibilities   int
	MaxDualInfeasibility     float64
	SumDualInfeasibilities   float64

	Iterations IterationCounts
}

// Clear resets the info, keeping nothing.
func (i *Info) Clear() {
	*i = Info{}
}

/* Working copies */

// Factorization is an invertible representation of the basis matrix B.
type Factorization interface {
	// HasInvertibleRepresentation reports whether solves against B are
	// available.
	HasInvertibleRepresentation() bool
	// TriangularSolve solves B·x = rhs, or Bᵀ·x = rhs when transpose is set,
	// returning x together with the number and positions of its nonzeros.
	TriangularSolve(rhs []float64, transpose bool) (x []float64, numNz int, indices []int)
	// BasicIndex lists the basic variable of each row of B. Indices at or
	// beyond the number of columns denote row logicals.
	BasicIndex() []int
}

// WorkingCopy is the unit a solve phase operates on: a model together with
// the results derived from it.
type WorkingCopy struct {
	Model *Model

	Solution Solution
	Basis    Basis

	ScaledStatus   ModelStatus
	UnscaledStatus ModelStatus
	Info           Info
	Iterations     IterationCounts

	Factor Factorization
}

// NewWorkingCopy wraps m with empty results.
func NewWorkingCopy(m *Model) *WorkingCopy {
	return &WorkingCopy{Model: m}
}

// SetStatus sets the scaled and unscaled status together.
func (wc *WorkingCopy) SetStatus(s ModelStatus) {
	wc.ScaledStatus = s
	wc.UnscaledStatus = s
}

// ResetResults discards the statuses, solution parameters and
// factorization of the working copy.
func (wc *WorkingCopy) ResetResults() {
	wc.SetStatus(ModelStatusNotSet)
	wc.Info.Clear()
	wc.Factor = nil
}

func resize(s []float64, n int) []float64 {
	if len(s) >= n {
		return s[:n]
	}
	return append(s, make([]float64, n-len(s))...)
}

func resizeStatus(s []BasisStatus, n int) []BasisStatus {
	if len(s) >= n {
		return s[:n]
	}
	return append(s, make([]BasisStatus, n-len(s))...)
}
