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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/lp"
	"github.com/costela/lpcore/presolve"
	"github.com/costela/lpcore/timer"
)

func TestRunWithoutModel(t *testing.T) {
	s := newSolver(t, nil)

	status, err := s.Run(context.Background())
	assert.Equal(t, lp.StatusError, status)
	assert.ErrorIs(t, err, lp.ErrLoad)
	assert.Equal(t, lp.ModelStatusLoadError, s.ModelStatus(false))
	assert.Equal(t, lp.ModelStatusLoadError, s.ModelStatus(true))
}

func TestRunModelFile(t *testing.T) {
	opts := config.Default()
	opts.ModelFile = "cover.yaml"
	reader := &fakeReader{model: coverModel(t)}
	s := newSolver(t, nil, WithOptions(opts), WithModelReader(reader))

	status, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, []string{"cover.yaml"}, reader.paths)
	assert.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(false))
	assert.InDelta(t, 1, s.Info().ObjectiveValue, delta)
}

func TestRunEmptyModel(t *testing.T) {
	s := newSolver(t, lp.NewModel(0, 2))

	status, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusModelEmpty, s.ModelStatus(false))
	sol := s.Solution()
	assert.True(t, sol.IsEmpty())
	assert.False(t, s.Basis().Valid)
	assert.Equal(t, lp.Info{}, s.Info())
}

func TestRunReducedToEmpty(t *testing.T) {
	s := newSolver(t, coverModel(t))

	status, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(false))
	assert.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(true))

	sol := s.Solution()
	assert.InDeltaSlice(t, []float64{1, 0}, sol.ColValue, delta)
	assert.InDeltaSlice(t, []float64{1}, sol.RowValue, delta)
	assert.InDeltaSlice(t, []float64{1}, sol.RowDual, delta)

	basis := s.Basis()
	require.True(t, basis.Valid)
	assert.Equal(t, []lp.BasisStatus{lp.BasisStatusBasic, lp.BasisStatusLower}, basis.ColStatus)
	assert.Equal(t, []lp.BasisStatus{lp.BasisStatusLower}, basis.RowStatus)

	info := s.Info()
	assert.InDelta(t, 1, info.ObjectiveValue, delta)
	assert.Zero(t, info.Iterations.Simplex)

	reductions := s.PresolveReductions()
	assert.Equal(t, 1, reductions.RowsRemoved)
	assert.Equal(t, 2, reductions.ColsRemoved)
}

func TestRunReduced(t *testing.T) {
	for _, presolveOption := range []string{config.Choose, config.Off} {
		t.Run(presolveOption, func(t *testing.T) {
			opts := config.Default()
			opts.Presolve = presolveOption
			s := newSolver(t, boundedModel(t), WithOptions(opts))

			status, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, lp.StatusOK, status)
			assert.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(false))

			sol := s.Solution()
			assert.InDeltaSlice(t, []float64{3, 3.5}, sol.ColValue, delta)
			assert.InDeltaSlice(t, []float64{6, 10}, sol.RowValue, delta)
			assert.InDelta(t, 6.5, s.Info().ObjectiveValue, delta)

			basis := s.Basis()
			require.True(t, basis.Valid)
			assert.Equal(t, []lp.BasisStatus{lp.BasisStatusBasic, lp.BasisStatusBasic}, basis.ColStatus)
			assert.Equal(t, []lp.BasisStatus{lp.BasisStatusUpper, lp.BasisStatusUpper}, basis.RowStatus)

			if presolveOption == config.Off {
				assert.Equal(t, presolve.Reductions{}, s.PresolveReductions())
			} else {
				assert.Equal(t, 1, s.PresolveReductions().RowsRemoved)
			}
		})
	}
}

func TestRunIdempotent(t *testing.T) {
	s := newSolver(t, boundedModel(t))

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	first := s.Solution()
	firstBasis := s.Basis()

	status, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, lp.StatusOK, status)
	assert.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(false))
	assert.InDeltaSlice(t, first.ColValue, s.Solution().ColValue, delta)
	assert.InDeltaSlice(t, first.RowDual, s.Solution().RowDual, delta)
	assert.Equal(t, firstBasis, s.Basis())
	// the optimal basis of the first run is reused as is
	assert.Zero(t, s.Info().Iterations.Simplex)
}

func TestRunDetectedByPresolve(t *testing.T) {
	unbounded := lp.NewModel(1, 0)
	unbounded.ColCost[0] = -1

	infeasible := lp.NewModel(1, 1)
	infeasible.RowLower[0], infeasible.RowUpper[0] = 1, 2

	tests := []struct {
		name  string
		model *lp.Model
		want  lp.ModelStatus
	}{
		{"unbounded", unbounded, lp.ModelStatusPrimalUnbounded},
		{"infeasible", infeasible, lp.ModelStatusPrimalInfeasible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSolver(t, tt.model)

			status, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, lp.StatusOK, status)
			assert.Equal(t, tt.want, s.ModelStatus(false))
			sol := s.Solution()
			assert.True(t, sol.IsEmpty())
			assert.False(t, s.Basis().Valid)
		})
	}
}

func TestRunRayWithInfeasibleRow(t *testing.T) {
	// x2 improves without bound but -x0 + 2 x1 = -2 cannot be met
	m := denseModel(t, lp.Minimize, []float64{3, 2, -2, 2},
		[][]float64{{-1, 2, 0, 0}}, []float64{-2}, []float64{-2})
	m.ColLower = []float64{-1, 1, -1, 0}
	m.ColUpper = []float64{1, 4, math.Inf(1), math.Inf(1)}

	for _, presolveOption := range []string{config.Choose, config.Off} {
		t.Run(presolveOption, func(t *testing.T) {
			opts := config.Default()
			opts.Presolve = presolveOption
			s := newSolver(t, m, WithOptions(opts))

			status, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, lp.StatusOK, status)
			assert.Equal(t, lp.ModelStatusPrimalInfeasible, s.ModelStatus(false))
		})
	}
}

func TestRunIPM(t *testing.T) {
	t.Run("crossover", func(t *testing.T) {
		opts := config.Default()
		opts.Solver = config.SolverIPM
		opts.Presolve = config.Off
		s := newSolver(t, boundedModel(t), WithOptions(opts))

		status, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, lp.StatusOK, status)
		assert.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(false))
		assert.InDelta(t, 6.5, s.Info().ObjectiveValue, delta)
		assert.True(t, s.Basis().Valid)
		assert.Positive(t, s.Info().Iterations.IPM)
	})

	t.Run("forced crossover with presolve", func(t *testing.T) {
		opts := config.Default()
		opts.Solver = config.SolverIPM
		opts.RunCrossover = false
		s := newSolver(t, boundedModel(t), WithOptions(opts))

		status, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, lp.StatusOK, status)
		assert.Equal(t, lp.ModelStatusOptimal, s.ModelStatus(false))
		assert.InDelta(t, 6.5, s.Info().ObjectiveValue, delta)
		assert.True(t, s.Basis().Valid)
		assert.Equal(t, opts, s.Options())
	})
}

func TestRunDispatch(t *testing.T) {
	opts := config.Default()
	opts.DualObjectiveValueUpperBound = 100
	opts.MaxThreads = 4
	opts.SimplexStrategy = config.StrategyPrimal

	tests := []struct {
		name           string
		presolveStatus presolve.Status
		postStatus     presolve.PostsolveStatus
		statuses       []lp.ModelStatus
		fail           map[int]bool

		wantStatus     lp.Status
		wantErr        error
		wantModel      lp.ModelStatus
		wantCalls      []int // columns of the model of each solve
		wantPostsolves int
	}{
		{
			name:           "not presolved",
			presolveStatus: presolve.StatusNotPresolved,
			wantStatus:     lp.StatusOK,
			wantModel:      lp.ModelStatusOptimal,
			wantCalls:      []int{2},
		},
		{
			name:           "not reduced",
			presolveStatus: presolve.StatusNotReduced,
			wantStatus:     lp.StatusOK,
			wantModel:      lp.ModelStatusOptimal,
			wantCalls:      []int{2},
		},
		{
			name:           "reduced",
			presolveStatus: presolve.StatusReduced,
			wantStatus:     lp.StatusOK,
			wantModel:      lp.ModelStatusOptimal,
			wantCalls:      []int{1, 2},
			wantPostsolves: 1,
		},
		{
			name:           "reduced to empty",
			presolveStatus: presolve.StatusReducedToEmpty,
			wantStatus:     lp.StatusOK,
			wantModel:      lp.ModelStatusOptimal,
			wantCalls:      []int{2},
			wantPostsolves: 1,
		},
		{
			name:           "infeasible",
			presolveStatus: presolve.StatusInfeasible,
			wantStatus:     lp.StatusOK,
			wantModel:      lp.ModelStatusPrimalInfeasible,
		},
		{
			name:           "unbounded",
			presolveStatus: presolve.StatusUnbounded,
			wantStatus:     lp.StatusOK,
			wantModel:      lp.ModelStatusPrimalUnbounded,
		},
		{
			name:           "timeout",
			presolveStatus: presolve.StatusTimeout,
			wantStatus:     lp.StatusWarning,
			wantModel:      lp.ModelStatusPresolveError,
		},
		{
			name:           "options error",
			presolveStatus: presolve.StatusOptionsError,
			wantStatus:     lp.StatusError,
			wantErr:        lp.ErrPresolve,
			wantModel:      lp.ModelStatusPresolveError,
		},
		{
			name:           "presolve error",
			presolveStatus: presolve.StatusError,
			wantStatus:     lp.StatusError,
			wantErr:        lp.ErrPresolve,
			wantModel:      lp.ModelStatusPresolveError,
		},
		{
			name:           "reduced LP infeasible",
			presolveStatus: presolve.StatusReduced,
			statuses:       []lp.ModelStatus{lp.ModelStatusPrimalInfeasible},
			wantStatus:     lp.StatusOK,
			wantModel:      lp.ModelStatusPrimalInfeasible,
			wantCalls:      []int{1},
		},
		{
			name:           "reduced LP at time limit",
			presolveStatus: presolve.StatusReduced,
			statuses:       []lp.ModelStatus{lp.ModelStatusReachedTimeLimit},
			wantStatus:     lp.StatusWarning,
			wantModel:      lp.ModelStatusReachedTimeLimit,
			wantCalls:      []int{1},
		},
		{
			name:           "reduced LP at dual objective bound",
			presolveStatus: presolve.StatusReduced,
			statuses:       []lp.ModelStatus{lp.ModelStatusReachedDualObjectiveBound},
			wantStatus:     lp.StatusError,
			wantErr:        lp.ErrSolve,
			wantModel:      lp.ModelStatusSolveError,
			wantCalls:      []int{1},
		},
		{
			name:           "reduced LP solve fails",
			presolveStatus: presolve.StatusReduced,
			fail:           map[int]bool{0: true},
			wantStatus:     lp.StatusError,
			wantErr:        lp.ErrSolve,
			wantModel:      lp.ModelStatusSolveError,
			wantCalls:      []int{1},
		},
		{
			name:           "postsolve dimension error",
			presolveStatus: presolve.StatusReduced,
			postStatus:     presolve.PostsolveReducedSolutionDimensionError,
			wantStatus:     lp.StatusError,
			wantErr:        lp.ErrPostsolve,
			wantModel:      lp.ModelStatusPostsolveError,
			wantCalls:      []int{1},
			wantPostsolves: 1,
		},
		{
			name:           "hot start fails",
			presolveStatus: presolve.StatusReduced,
			fail:           map[int]bool{1: true},
			wantStatus:     lp.StatusError,
			wantErr:        lp.ErrSolve,
			wantModel:      lp.ModelStatusSolveError,
			wantCalls:      []int{1, 2},
			wantPostsolves: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			presolver := &fakePresolver{
				status:     tt.presolveStatus,
				reduced:    denseModel(t, lp.Minimize, []float64{1}, [][]float64{{1}}, []float64{1}, []float64{math.Inf(1)}),
				postStatus: tt.postStatus,
			}
			method := &fakeSolver{statuses: tt.statuses, fail: tt.fail}
			s := newSolver(t, coverModel(t),
				WithOptions(opts),
				WithPresolver(presolver),
				WithMethod(config.SolverSimplex, method),
			)

			status, err := s.Run(context.Background())
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantModel, s.ModelStatus(false))
			assert.Equal(t, tt.wantModel, s.ModelStatus(true))
			assert.Equal(t, 1, presolver.runs)
			assert.Len(t, presolver.postsolved, tt.wantPostsolves)

			var calls []int
			for _, c := range method.calls {
				calls = append(calls, c.numCol)
			}
			assert.Equal(t, tt.wantCalls, calls)

			// options are back to the caller's values on every path
			assert.Equal(t, opts, s.Options())

			if tt.wantModel == lp.ModelStatusOptimal {
				assert.InDelta(t, 42, s.Info().ObjectiveValue, delta)
				sol := s.Solution()
				assert.True(t, sol.Consistent(s.Model()))
				assert.True(t, s.Basis().Valid)
			} else {
				sol := s.Solution()
				assert.True(t, sol.IsEmpty())
			}
		})
	}
}

func TestRunOverrides(t *testing.T) {
	opts := config.Default()
	opts.DualObjectiveValueUpperBound = 100
	opts.MinThreads = 2
	opts.MaxThreads = 4
	opts.SimplexStrategy = config.StrategyPrimal

	presolver := &fakePresolver{
		status:  presolve.StatusReduced,
		reduced: denseModel(t, lp.Minimize, []float64{1}, [][]float64{{1}}, []float64{1}, []float64{math.Inf(1)}),
	}
	method := &fakeSolver{}
	s := newSolver(t, coverModel(t), WithOptions(opts), WithPresolver(presolver), WithMethod(config.SolverSimplex, method))

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, method.calls, 2)

	reduced := method.calls[0].opts
	assert.True(t, math.IsInf(reduced.DualObjectiveValueUpperBound, 1))
	assert.Equal(t, 4, reduced.MaxThreads)
	assert.Equal(t, config.StrategyPrimal, reduced.SimplexStrategy)

	hot := method.calls[1].opts
	assert.InDelta(t, 100, hot.DualObjectiveValueUpperBound, delta)
	assert.Equal(t, 1, hot.MinThreads)
	assert.Equal(t, 1, hot.MaxThreads)
	assert.Equal(t, config.Choose, hot.SimplexStrategy)
	assert.Equal(t, config.SolverSimplex, hot.Solver)

	assert.Equal(t, opts, s.Options())
	// iterations of the reduced solve count towards the run
	assert.Equal(t, 2, s.Info().Iterations.Simplex)
}

func TestRunForcesCrossover(t *testing.T) {
	opts := config.Default()
	opts.Solver = config.SolverIPM
	opts.RunCrossover = false

	for _, presolveOption := range []string{config.Choose, config.Off} {
		t.Run(presolveOption, func(t *testing.T) {
			opts := opts
			opts.Presolve = presolveOption
			ipmMethod := &fakeSolver{}
			simplexMethod := &fakeSolver{}
			s := newSolver(t, coverModel(t),
				WithOptions(opts),
				WithPresolver(&fakePresolver{status: presolve.StatusNotReduced}),
				WithMethod(config.SolverIPM, ipmMethod),
				WithMethod(config.SolverSimplex, simplexMethod),
			)

			_, err := s.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, ipmMethod.calls, 1)
			assert.Equal(t, presolveOption != config.Off, ipmMethod.calls[0].opts.RunCrossover)
			assert.Empty(t, simplexMethod.calls)
			assert.Equal(t, opts, s.Options())
		})
	}
}

func TestRunTime(t *testing.T) {
	now := time.Unix(0, 0)
	clock := timer.NewWithSource(func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	})
	s := newSolver(t, coverModel(t), WithClock(clock))
	assert.Zero(t, s.RunTime())

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	first := s.RunTime()
	assert.Positive(t, first)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, s.RunTime(), first)
}
