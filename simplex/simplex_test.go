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
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/lp"
)

const delta = 0.0000001

// buildModel creates a model with non-negative columns from dense rows.
func buildModel(t *testing.T, sense lp.Sense, cost []float64, rows [][]float64, lower, upper []float64) *lp.Model {
	t.Helper()

	m := lp.NewModel(len(cost), 0)
	m.Sense = sense
	copy(m.ColCost, cost)
	for i, r := range rows {
		require.NoError(t, m.AddDenseRow(lower[i], r, upper[i]))
	}
	require.NoError(t, m.Validate())

	return m
}

func solve(t *testing.T, m *lp.Model, opts config.Options) (*lp.WorkingCopy, lp.Status) {
	t.Helper()

	wc := lp.NewWorkingCopy(m)
	status, err := New(nil, nil).Solve(context.Background(), wc, &opts, "test")
	require.NoError(t, err)

	return wc, status
}

func twoConstraints(t *testing.T, sense lp.Sense, cost []float64) *lp.Model {
	return buildModel(t, sense, cost,
		[][]float64{{1, 2}, {3, 1}},
		[]float64{math.Inf(-1), math.Inf(-1)},
		[]float64{4, 6},
	)
}

func TestMinimize(t *testing.T) {
	wc, status := solve(t, twoConstraints(t, lp.Minimize, []float64{-1, -1}), config.Default())

	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)
	assert.Equal(t, lp.ModelStatusOptimal, wc.UnscaledStatus)

	assert.InDelta(t, -2.8, wc.Info.ObjectiveValue, delta)
	assert.InDelta(t, 1.6, wc.Solution.ColValue[0], delta)
	assert.InDelta(t, 1.2, wc.Solution.ColValue[1], delta)
	assert.InDelta(t, 4, wc.Solution.RowValue[0], delta)
	assert.InDelta(t, 6, wc.Solution.RowValue[1], delta)
	assert.InDelta(t, -0.4, wc.Solution.RowDual[0], delta)
	assert.InDelta(t, -0.2, wc.Solution.RowDual[1], delta)
	assert.InDelta(t, 0, wc.Solution.ColDual[0], delta)
	assert.InDelta(t, 0, wc.Solution.ColDual[1], delta)

	require.True(t, wc.Basis.Valid)
	assert.Equal(t, []lp.BasisStatus{lp.BasisStatusBasic, lp.BasisStatusBasic}, wc.Basis.ColStatus)
	assert.Equal(t, []lp.BasisStatus{lp.BasisStatusUpper, lp.BasisStatusUpper}, wc.Basis.RowStatus)
	assert.True(t, wc.Factor.HasInvertibleRepresentation())
	assert.Equal(t, lp.SolutionStatusFeasible, wc.Info.PrimalStatus)
	assert.Equal(t, lp.SolutionStatusFeasible, wc.Info.DualStatus)
	assert.Positive(t, wc.Iterations.Simplex)
}

func TestMaximize(t *testing.T) {
	wc, status := solve(t, twoConstraints(t, lp.Maximize, []float64{1, 1}), config.Default())

	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)
	assert.InDelta(t, 2.8, wc.Info.ObjectiveValue, delta)
	assert.InDelta(t, 0.4, wc.Solution.RowDual[0], delta)
	assert.InDelta(t, 0.2, wc.Solution.RowDual[1], delta)
}

func TestBoundedColumn(t *testing.T) {
	// min 2 x0 + 3 x1  s.t.  x0 + x1 >= 4,  0 <= x0 <= 3
	m := buildModel(t, lp.Minimize, []float64{2, 3}, [][]float64{{1, 1}}, []float64{4}, []float64{math.Inf(1)})
	m.ColUpper[0] = 3

	wc, _ := solve(t, m, config.Default())

	require.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)
	assert.InDelta(t, 9, wc.Info.ObjectiveValue, delta)
	assert.InDelta(t, 3, wc.Solution.ColValue[0], delta)
	assert.InDelta(t, 1, wc.Solution.ColValue[1], delta)
	assert.InDelta(t, 3, wc.Solution.RowDual[0], delta)
	assert.InDelta(t, -1, wc.Solution.ColDual[0], delta)
	assert.Equal(t, []lp.BasisStatus{lp.BasisStatusUpper, lp.BasisStatusBasic}, wc.Basis.ColStatus)
	assert.Equal(t, []lp.BasisStatus{lp.BasisStatusLower}, wc.Basis.RowStatus)
}

func TestFreeColumn(t *testing.T) {
	// min x0  s.t.  x0 >= -3, x0 free
	m := buildModel(t, lp.Minimize, []float64{1}, [][]float64{{1}}, []float64{-3}, []float64{math.Inf(1)})
	m.ColLower[0] = math.Inf(-1)

	wc, _ := solve(t, m, config.Default())

	require.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)
	assert.InDelta(t, -3, wc.Solution.ColValue[0], delta)
	assert.Equal(t, lp.BasisStatusLower, wc.Basis.RowStatus[0])
}

func TestNoRows(t *testing.T) {
	m := lp.NewModel(1, 0)
	m.ColCost[0] = 1
	m.ColLower[0], m.ColUpper[0] = 1, 5

	wc, status := solve(t, m, config.Default())

	assert.Equal(t, lp.StatusOK, status)
	require.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)
	assert.InDelta(t, 1, wc.Info.ObjectiveValue, delta)
	assert.True(t, wc.Factor.HasInvertibleRepresentation())
}

func TestInfeasible(t *testing.T) {
	m := buildModel(t, lp.Minimize, []float64{1, 1},
		[][]float64{{1, 1}, {1, 1}},
		[]float64{math.Inf(-1), 3},
		[]float64{1, math.Inf(1)},
	)

	wc, status := solve(t, m, config.Default())

	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusPrimalInfeasible, wc.ScaledStatus)
	assert.Equal(t, lp.SolutionStatusInfeasible, wc.Info.PrimalStatus)
	assert.True(t, wc.Basis.Valid)
}

func TestUnbounded(t *testing.T) {
	m := buildModel(t, lp.Minimize, []float64{-1, 0}, [][]float64{{1, -1}}, []float64{math.Inf(-1)}, []float64{1})

	wc, status := solve(t, m, config.Default())

	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusPrimalUnbounded, wc.ScaledStatus)
}

func TestWarmStart(t *testing.T) {
	m := twoConstraints(t, lp.Minimize, []float64{-1, -1})
	wc, _ := solve(t, m, config.Default())
	require.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)

	wc.Iterations = lp.IterationCounts{}
	opts := config.Default()
	status, err := New(nil, nil).Solve(context.Background(), wc, &opts, "warm")
	require.NoError(t, err)

	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)
	assert.Equal(t, 0, wc.Iterations.Simplex)
	assert.InDelta(t, -2.8, wc.Info.ObjectiveValue, delta)
}

func TestIterationLimit(t *testing.T) {
	opts := config.Default()
	opts.SimplexIterationLimit = 0

	wc, status := solve(t, twoConstraints(t, lp.Minimize, []float64{-1, -1}), opts)

	assert.Equal(t, lp.StatusWarning, status)
	assert.Equal(t, lp.ModelStatusReachedIterationLimit, wc.ScaledStatus)
	assert.Equal(t, 0, wc.Iterations.Simplex)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wc := lp.NewWorkingCopy(twoConstraints(t, lp.Minimize, []float64{-1, -1}))
	opts := config.Default()
	status, err := New(nil, nil).Solve(ctx, wc, &opts, "canceled")

	require.NoError(t, err)
	assert.Equal(t, lp.StatusWarning, status)
	assert.Equal(t, lp.ModelStatusReachedTimeLimit, wc.ScaledStatus)
}

func TestDualObjectiveBound(t *testing.T) {
	opts := config.Default()
	opts.DualObjectiveValueUpperBound = -2

	wc, status := solve(t, twoConstraints(t, lp.Minimize, []float64{-1, -1}), opts)
	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)

	opts.DualObjectiveValueUpperBound = -5
	wc, _ = solve(t, twoConstraints(t, lp.Minimize, []float64{1, 1}), opts)
	assert.Equal(t, lp.ModelStatusReachedDualObjectiveBound, wc.ScaledStatus)
}

func TestScaling(t *testing.T) {
	// the first model scaled by wildly different row factors
	m := buildModel(t, lp.Minimize, []float64{-1, -1},
		[][]float64{{1000, 2000}, {0.003, 0.001}},
		[]float64{math.Inf(-1), math.Inf(-1)},
		[]float64{4000, 0.006},
	)
	require.NotNil(t, computeScaling(m))

	for _, scale := range []bool{true, false} {
		opts := config.Default()
		opts.SimplexScale = scale

		wc, _ := solve(t, m, opts)
		require.Equal(t, lp.ModelStatusOptimal, wc.ScaledStatus)
		assert.InDelta(t, 1.6, wc.Solution.ColValue[0], 1e-6)
		assert.InDelta(t, 1.2, wc.Solution.ColValue[1], 1e-6)
		assert.InDelta(t, -0.4/1000, wc.Solution.RowDual[0], 1e-9)
	}
}

func TestParallelPricing(t *testing.T) {
	n := 1500
	m := lp.NewModel(n, 2)
	nz := make([]lp.Nonzero, 0, 2*n)
	for j := 0; j < n; j++ {
		m.ColCost[j] = float64(j % 7)
		nz = append(nz, lp.Nonzero{Row: j % 2, Col: j, Val: float64(j%5 + 1)})
	}
	require.NoError(t, m.FromTriplets(nz))

	opts := config.Default()
	st := newState(m, &opts)
	st.slackStart()
	y := []float64{0.5, -2}

	opts.MaxThreads = 1
	serial, err := st.price(context.Background(), y, false)
	require.NoError(t, err)

	opts.MaxThreads = 4
	parallel, err := st.price(context.Background(), y, false)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	assert.InDelta(t, 0-1*0.5, serial[0], delta)
	assert.InDelta(t, 1-2*(-2), serial[1], delta)
}

func TestFactor(t *testing.T) {
	m := twoConstraints(t, lp.Minimize, []float64{-1, -1})

	// basis of column 0 and the logical of row 1: B = [[1 0] [3 1]]
	f := NewFactor(m, []int{0, m.NumCol + 1})
	require.True(t, f.HasInvertibleRepresentation())
	assert.Equal(t, []int{0, 3}, f.BasicIndex())

	x, nnz, idx := f.TriangularSolve([]float64{1, 0}, false)
	assert.InDelta(t, 1, x[0], delta)
	assert.InDelta(t, -3, x[1], delta)
	assert.Equal(t, 2, nnz)
	assert.Equal(t, []int{0, 1}, idx)

	// Bᵀ y = e_1
	y, nnz, idx := f.TriangularSolve([]float64{0, 1}, true)
	assert.InDelta(t, -3, y[0], delta)
	assert.InDelta(t, 1, y[1], delta)
	assert.Equal(t, 2, nnz)
	assert.Equal(t, []int{0, 1}, idx)

	x, nnz, idx = f.TriangularSolve([]float64{0, 1}, false)
	assert.Equal(t, []float64{0, 1}, x)
	assert.Equal(t, 1, nnz)
	assert.Equal(t, []int{1}, idx)

	singular := NewFactor(m, []int{m.NumCol, m.NumCol})
	assert.False(t, singular.HasInvertibleRepresentation())

	var none *Factor
	assert.False(t, none.HasInvertibleRepresentation())
}
