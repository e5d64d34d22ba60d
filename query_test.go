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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/lp"
)

func solved(t *testing.T, m *lp.Model) *Solver {
	t.Helper()

	s := newSolver(t, m)
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(false))
	return s
}

// basisMatrix builds the dense basis matrix from the basic variables.
func basisMatrix(t *testing.T, s *Solver) [][]float64 {
	t.Helper()

	m := s.Model()
	basic, err := s.BasicVariables()
	require.NoError(t, err)
	require.Len(t, basic, m.NumRow)

	b := make([][]float64, m.NumRow)
	for i := range b {
		b[i] = make([]float64, m.NumRow)
	}
	for k, v := range basic {
		if v < 0 {
			b[-(1 + v)][k] = 1
			continue
		}
		rows, vals := m.Column(v)
		for p, i := range rows {
			b[i][k] = vals[p]
		}
	}
	return b
}

func mul(b [][]float64, x []float64) []float64 {
	out := make([]float64, len(b))
	for i, row := range b {
		for k, v := range row {
			out[i] += v * x[k]
		}
	}
	return out
}

func TestBasicVariables(t *testing.T) {
	s := solved(t, coverModel(t))

	basic, err := s.BasicVariables()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, basic)

	// a run stopped at the iteration limit leaves no basis to query
	s = newSolver(t, coverModel(t))
	require.NoError(t, s.SetBasis(lp.Basis{
		ColStatus: []lp.BasisStatus{lp.BasisStatusLower, lp.BasisStatusLower},
		RowStatus: []lp.BasisStatus{lp.BasisStatusBasic},
	}))
	opts := s.Options()
	opts.SimplexIterationLimit = 0
	require.NoError(t, s.SetOptions(opts))
	status, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lp.StatusWarning, status)
	assert.Equal(t, lp.ModelStatusReachedIterationLimit, s.ModelStatus(false))
	_, err = s.BasicVariables()
	assert.ErrorIs(t, err, lp.ErrNoInvertibleRepresentation)
}

func TestBasisInverse(t *testing.T) {
	s := solved(t, boundedModel(t))
	b := basisMatrix(t, s)

	for i := 0; i < 2; i++ {
		e := []float64{0, 0}
		e[i] = 1

		col := make([]float64, 2)
		_, err := s.BasisInverseCol(i, col, nil)
		require.NoError(t, err)
		assert.InDeltaSlice(t, e, mul(b, col), delta)

		row := make([]float64, 2)
		indices := make([]int, 2)
		nnz, err := s.BasisInverseRow(i, row, indices)
		require.NoError(t, err)
		// row i of the inverse times column k of B is the unit vector
		for k := 0; k < 2; k++ {
			got := 0.0
			for r := 0; r < 2; r++ {
				got += row[r] * b[r][k]
			}
			assert.InDelta(t, e[k], got, delta)
		}
		for _, r := range indices[:nnz] {
			assert.NotZero(t, row[r])
		}
	}
}

func TestBasisSolve(t *testing.T) {
	s := solved(t, boundedModel(t))
	b := basisMatrix(t, s)
	rhs := []float64{6, 10}

	x := make([]float64, 2)
	_, err := s.BasisSolve(rhs, x, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, rhs, mul(b, x), delta)

	y := make([]float64, 2)
	_, err = s.BasisTransposeSolve(rhs, y, nil)
	require.NoError(t, err)
	for k := 0; k < 2; k++ {
		got := 0.0
		for r := 0; r < 2; r++ {
			got += b[r][k] * y[r]
		}
		assert.InDelta(t, rhs[k], got, delta)
	}

	_, err = s.BasisSolve([]float64{1}, x, nil)
	assert.ErrorIs(t, err, lp.ErrIndexOutOfRange)
}

func TestReducedRowAndColumn(t *testing.T) {
	s := solved(t, boundedModel(t))
	basic, err := s.BasicVariables()
	require.NoError(t, err)

	// both columns are basic, so B⁻¹A is a permutation matrix
	for i, j := range basic {
		values := make([]float64, 2)
		indices := make([]int, 2)
		nnz, err := s.ReducedRow(context.Background(), i, values, indices)
		require.NoError(t, err)
		assert.Equal(t, 1, nnz)
		assert.Equal(t, j, indices[0])
		assert.InDelta(t, 1, values[j], delta)
		assert.InDelta(t, 0, values[1-j], delta)

		values = make([]float64, 2)
		nnz, err = s.ReducedColumn(j, values, indices)
		require.NoError(t, err)
		assert.Equal(t, 1, nnz)
		assert.Equal(t, i, indices[0])
		assert.InDelta(t, 1, values[i], delta)
	}
}

func TestReducedRowCover(t *testing.T) {
	s := solved(t, coverModel(t))

	values := make([]float64, 2)
	nnz, err := s.ReducedRow(context.Background(), 0, values, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, nnz)
	assert.InDeltaSlice(t, []float64{1, 1}, values, delta)

	values = make([]float64, 1)
	nnz, err = s.ReducedColumn(1, values, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, nnz)
	assert.InDeltaSlice(t, []float64{1}, values, delta)
}

func TestReducedRowWide(t *testing.T) {
	// min Σ (2+j) x_j  s.t.  Σ (1 + j mod 7) x_j ≥ 1, wide enough to split
	// the row over several workers
	const n = 2 * parallelThreshold
	cost := make([]float64, n)
	row := make([]float64, n)
	for j := range cost {
		cost[j] = float64(2 + j)
		row[j] = float64(1 + j%7)
	}
	opts := config.Default()
	opts.Presolve = config.Off
	s := newSolver(t, denseModel(t, lp.Minimize, cost, [][]float64{row}, []float64{1}, []float64{math.Inf(1)}), WithOptions(opts))
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(false))

	basic, err := s.BasicVariables()
	require.NoError(t, err)
	require.GreaterOrEqual(t, basic[0], 0)
	want := make([]float64, n)
	for j := range want {
		want[j] = row[j] / row[basic[0]]
	}

	for _, threads := range []int{1, 4} {
		opts.MaxThreads = threads
		require.NoError(t, s.SetOptions(opts))

		values := make([]float64, n)
		indices := make([]int, n)
		nnz, err := s.ReducedRow(context.Background(), 0, values, indices)
		require.NoError(t, err)
		assert.Equal(t, n, nnz)
		assert.InDeltaSlice(t, want, values, delta)
		for k := 1; k < nnz; k++ {
			assert.Less(t, indices[k-1], indices[k])
		}
	}
}

func TestQueryErrors(t *testing.T) {
	values := make([]float64, 2)
	short, shortIdx := make([]float64, 1), make([]int, 1)
	ctx := context.Background()

	s := newSolver(t, nil)
	_, err := s.BasisInverseRow(0, values, nil)
	assert.ErrorIs(t, err, lp.ErrLoad)
	_, err = s.ReducedColumn(0, values, nil)
	assert.ErrorIs(t, err, lp.ErrLoad)
	_, err = s.BasisSolve(nil, values, nil)
	assert.ErrorIs(t, err, lp.ErrLoad)

	s = newSolver(t, boundedModel(t))
	_, err = s.BasisInverseCol(0, values, nil)
	assert.ErrorIs(t, err, lp.ErrNoInvertibleRepresentation)
	// range checks come first
	_, err = s.BasisInverseCol(2, values, nil)
	assert.ErrorIs(t, err, lp.ErrIndexOutOfRange)

	_, err = s.Run(ctx)
	require.NoError(t, err)

	for name, query := range map[string]func() (int, error){
		"inverse row -1":    func() (int, error) { return s.BasisInverseRow(-1, values, nil) },
		"inverse row 2":     func() (int, error) { return s.BasisInverseRow(2, values, nil) },
		"inverse col -1":    func() (int, error) { return s.BasisInverseCol(-1, values, nil) },
		"inverse col 2":     func() (int, error) { return s.BasisInverseCol(2, values, nil) },
		"reduced row -1":    func() (int, error) { return s.ReducedRow(ctx, -1, values, nil) },
		"reduced row 2":     func() (int, error) { return s.ReducedRow(ctx, 2, values, nil) },
		"reduced column -1": func() (int, error) { return s.ReducedColumn(-1, values, nil) },
		"reduced column 2":  func() (int, error) { return s.ReducedColumn(2, values, nil) },

		"short values":      func() (int, error) { return s.BasisInverseRow(0, short, nil) },
		"short indices":     func() (int, error) { return s.BasisInverseCol(0, values, shortIdx) },
		"short solve":       func() (int, error) { return s.BasisSolve([]float64{1, 1}, short, nil) },
		"short reduced row": func() (int, error) { return s.ReducedRow(ctx, 0, short, nil) },
		"short reduced col": func() (int, error) { return s.ReducedColumn(0, values, shortIdx) },
	} {
		t.Run(name, func(t *testing.T) {
			_, err := query()
			assert.ErrorIs(t, err, lp.ErrIndexOutOfRange)
		})
	}

	s.ClearBasis()
	_, err = s.ReducedRow(ctx, 0, values, nil)
	assert.ErrorIs(t, err, lp.ErrNoInvertibleRepresentation)
}
