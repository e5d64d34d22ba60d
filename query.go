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

package lpcore

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/costela/lpcore/lp"
)

// below this many columns reduced rows are computed on the calling
// goroutine
const parallelThreshold = 1024

// The basis queries below share one convention: values receives the dense
// result and must hold at least as many entries as the result has; when
// indices is not nil it receives the positions of the nonzeros. The number
// of nonzeros is returned.

// BasisInverseRow computes row i of the inverse of the basis matrix.
func (s *Solver) BasisInverseRow(i int, values []float64, indices []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.factor("BasisInverseRow", i, s.numRow())
	if err != nil {
		return 0, err
	}
	if err := buffers("BasisInverseRow", s.model.NumRow, values, indices); err != nil {
		return 0, err
	}
	x, nnz, idx := f.TriangularSolve(unit(s.model.NumRow, i), true)
	return output(x, nnz, idx, values, indices), nil
}

// BasisInverseCol computes column i of the inverse of the basis matrix.
func (s *Solver) BasisInverseCol(i int, values []float64, indices []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.factor("BasisInverseCol", i, s.numRow())
	if err != nil {
		return 0, err
	}
	if err := buffers("BasisInverseCol", s.model.NumRow, values, indices); err != nil {
		return 0, err
	}
	x, nnz, idx := f.TriangularSolve(unit(s.model.NumRow, i), false)
	return output(x, nnz, idx, values, indices), nil
}

// BasisSolve solves B·x = rhs.
func (s *Solver) BasisSolve(rhs, values []float64, indices []int) (int, error) {
	return s.basisSolve("BasisSolve", rhs, false, values, indices)
}

// BasisTransposeSolve solves Bᵀ·x = rhs.
func (s *Solver) BasisTransposeSolve(rhs, values []float64, indices []int) (int, error) {
	return s.basisSolve("BasisTransposeSolve", rhs, true, values, indices)
}

func (s *Solver) basisSolve(op string, rhs []float64, transpose bool, values []float64, indices []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return 0, lp.NewError(op, lp.ErrLoad, "no model loaded")
	}
	if len(rhs) != s.model.NumRow {
		return 0, lp.NewError(op, lp.ErrIndexOutOfRange,
			fmt.Sprintf("right-hand side of length %d for %d rows", len(rhs), s.model.NumRow))
	}
	f, err := s.factor(op, 0, 1)
	if err != nil {
		return 0, err
	}
	if err := buffers(op, s.model.NumRow, values, indices); err != nil {
		return 0, err
	}
	x, nnz, idx := f.TriangularSolve(rhs, transpose)
	return output(x, nnz, idx, values, indices), nil
}

// ReducedRow computes row i of B⁻¹·A, one entry per column. Entries of
// magnitude at most lp.Tiny are zero.
func (s *Solver) ReducedRow(ctx context.Context, i int, values []float64, indices []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.factor("ReducedRow", i, s.numRow())
	if err != nil {
		return 0, err
	}
	if err := buffers("ReducedRow", s.model.NumCol, values, indices); err != nil {
		return 0, err
	}
	y, _, _ := f.TriangularSolve(unit(s.model.NumRow, i), true)

	m := s.model
	row := make([]float64, m.NumCol)
	compute := func(from, to int) {
		for j := from; j < to; j++ {
			v := 0.0
			rows, vals := m.Column(j)
			for k, r := range rows {
				v += vals[k] * y[r]
			}
			row[j] = v
		}
	}

	workers := s.options.MaxThreads
	if workers <= 1 || m.NumCol < parallelThreshold {
		compute(0, m.NumCol)
	} else {
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		chunk := (m.NumCol + workers - 1) / workers
		for from := 0; from < m.NumCol; from += chunk {
			to := min(from+chunk, m.NumCol)
			g.Go(func() error {
				compute(from, to)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	var nz []int
	for j, v := range row {
		if math.Abs(v) > lp.Tiny {
			nz = append(nz, j)
		} else {
			row[j] = 0
		}
	}
	return output(row, len(nz), nz, values, indices), nil
}

// ReducedColumn computes column j of B⁻¹·A.
func (s *Solver) ReducedColumn(j int, values []float64, indices []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	numCol := -1
	if s.model != nil {
		numCol = s.model.NumCol
	}
	f, err := s.factor("ReducedColumn", j, numCol)
	if err != nil {
		return 0, err
	}
	if err := buffers("ReducedColumn", s.model.NumRow, values, indices); err != nil {
		return 0, err
	}
	rhs := make([]float64, s.model.NumRow)
	rows, vals := s.model.Column(j)
	for k, r := range rows {
		rhs[r] = vals[k]
	}
	x, nnz, idx := f.TriangularSolve(rhs, false)
	return output(x, nnz, idx, values, indices), nil
}

// BasicVariables lists the basic variable of each row: a column index, or
// -(1+i) for the logical of row i.
func (s *Solver) BasicVariables() ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.factor("BasicVariables", 0, 1)
	if err != nil {
		return nil, err
	}
	basic := f.BasicIndex()
	for i, v := range basic {
		if v >= s.model.NumCol {
			basic[i] = -(1 + v - s.model.NumCol)
		}
	}
	return basic, nil
}

func (s *Solver) numRow() int {
	if s.model == nil {
		return -1
	}
	return s.model.NumRow
}

// factor checks the preconditions of a query on index i in [0, dim) and
// returns the factorization of the current basis.
func (s *Solver) factor(op string, i, dim int) (lp.Factorization, error) {
	if s.model == nil || s.store.original == nil {
		return nil, lp.NewError(op, lp.ErrLoad, "no model loaded")
	}
	if i < 0 || i >= dim {
		return nil, lp.NewError(op, lp.ErrIndexOutOfRange, fmt.Sprintf("index %d not in [0, %d)", i, dim))
	}
	f := s.store.original.Factor
	if f == nil || !f.HasInvertibleRepresentation() {
		return nil, lp.NewError(op, lp.ErrNoInvertibleRepresentation, "no factorization of the basis matrix")
	}
	return f, nil
}

func unit(n, i int) []float64 {
	e := make([]float64, n)
	e[i] = 1
	return e
}

// buffers checks that values, and indices if given, can hold a result of
// dimension dim.
func buffers(op string, dim int, values []float64, indices []int) error {
	if len(values) < dim {
		return lp.NewError(op, lp.ErrIndexOutOfRange, fmt.Sprintf("values holds %d entries, want %d", len(values), dim))
	}
	if indices != nil && len(indices) < dim {
		return lp.NewError(op, lp.ErrIndexOutOfRange, fmt.Sprintf("indices holds %d entries, want %d", len(indices), dim))
	}
	return nil
}

// output copies a dense result to values, and its nonzero positions to
// indices if requested.
func output(x []float64, nnz int, idx []int, values []float64, indices []int) int {
	copy(values[:len(x)], x)
	if indices != nil {
		copy(indices[:nnz], idx)
	}
	return nnz
}
