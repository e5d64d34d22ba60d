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
Package simplex implements a bounded primal simplex method over the
computational form [A I]·[x; s] = 0, where the logical s of row i carries
the bounds [-RowUpper_i, -RowLower_i].

Phase 1 minimizes the sum of infeasibilities of the basic variables;
phase 2 minimizes the objective from the feasible basis phase 1 ends with.
The basis matrix is refactorized with an LU decomposition every iteration,
so the method is meant for the small and medium models this module is
exercised with.
*/
package simplex

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/lp"
	"github.com/costela/lpcore/timer"
)

const (
	pivotTolerance = 1e-9
	// degenerate pivots in a row before switching to Bland's rule
	degenerateLimit = 50
)

type outcome int

const (
	outcomeOptimal outcome = iota
	outcomeInfeasible
	outcomeUnbounded
	outcomeIterationLimit
	outcomeTimeLimit
)

// Solver solves working copies with the primal simplex method.
type Solver struct {
	logger *slog.Logger
	clock  *timer.Clock
}

// New returns a simplex solver. The clock provides the run time checked
// against the time limit; nil disables the check.
func New(logger *slog.Logger, clock *timer.Clock) *Solver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Solver{
		logger: logger,
		clock:  clock,
	}
}

// Solve runs the simplex method on wc, starting from wc.Basis when it is
// valid. The solution, basis, statuses, info and factorization of wc are
// replaced.
func (s *Solver) Solve(ctx context.Context, wc *lp.WorkingCopy, opts *config.Options, label string) (lp.Status, error) {
	model := wc.Model
	s.logger.Debug("simplex solve",
		slog.String("label", label),
		slog.Int("num_col", model.NumCol),
		slog.Int("num_row", model.NumRow),
		slog.String("strategy", opts.SimplexStrategy),
	)

	work := model
	var sc *scaling
	if opts.SimplexScale {
		if sc = computeScaling(model); sc != nil {
			work = sc.apply(model)
		}
	}

	st := newState(work, opts)
	if wc.Basis.Valid && wc.Basis.Consistent(model) {
		if !st.warmStart(wc.Basis) {
			s.logger.Warn("supplied basis is singular, starting from the slack basis", slog.String("label", label))
			st.slackStart()
		}
	} else {
		st.slackStart()
	}

	var limit interface{ Exceeded() bool }
	if s.clock != nil {
		limit = clockLimit{clock: s.clock, opts: opts}
	}
	result, err := st.iterate(ctx, limit)
	wc.Iterations.Simplex += st.iterations
	if err != nil {
		wc.SetStatus(lp.ModelStatusSolveError)
		wc.Factor = nil
		return lp.StatusError, lp.NewError("simplex", lp.ErrSolve, err.Error())
	}

	x := make([]float64, model.NumCol)
	copy(x, st.x[:model.NumCol])
	if sc != nil {
		sc.unscaleColumns(x)
	}

	basis := st.basis()
	wc.Basis = basis
	factor := NewFactor(model, st.basic)
	if !factor.HasInvertibleRepresentation() {
		wc.SetStatus(lp.ModelStatusSolveError)
		wc.Factor = nil
		return lp.StatusError, lp.NewError("simplex", lp.ErrSolve, "final basis is singular")
	}
	wc.Factor = factor
	wc.Solution = computeSolution(model, x, factor)
	wc.Info = assess(model, &wc.Solution, &basis, opts)
	wc.Info.Iterations = wc.Iterations

	var status lp.ModelStatus
	switch result {
	case outcomeOptimal:
		status = lp.ModelStatusOptimal
		if obj := float64(model.Sense) * wc.Info.ObjectiveValue; obj > opts.DualObjectiveValueUpperBound {
			status = lp.ModelStatusReachedDualObjectiveBound
		}
	case outcomeInfeasible:
		status = lp.ModelStatusPrimalInfeasible
	case outcomeUnbounded:
		status = lp.ModelStatusPrimalUnbounded
	case outcomeIterationLimit:
		status = lp.ModelStatusReachedIterationLimit
	case outcomeTimeLimit:
		status = lp.ModelStatusReachedTimeLimit
	}
	wc.ScaledStatus = status
	wc.UnscaledStatus = status
	if status == lp.ModelStatusOptimal &&
		(wc.Info.NumPrimalInfeasibilities > 0 || wc.Info.NumDualInfeasibilities > 0) {
		// optimal for the scaled LP only
		wc.UnscaledStatus = lp.ModelStatusNotSet
		s.logger.Warn("unscaled solution has infeasibilities",
			slog.Float64("max_primal_infeasibility", wc.Info.MaxPrimalInfeasibility),
			slog.Float64("max_dual_infeasibility", wc.Info.MaxDualInfeasibility),
		)
	}

	s.logger.Debug("simplex finished",
		slog.String("label", label),
		slog.String("status", status.String()),
		slog.Int("iterations", st.iterations),
		slog.Float64("objective", wc.Info.ObjectiveValue),
	)

	return status.CallStatus(), nil
}

type clockLimit struct {
	clock *timer.Clock
	opts  *config.Options
}

func (c clockLimit) Exceeded() bool {
	return c.clock.Exceeded(c.opts.TimeLimitDuration())
}

/* Iteration state */

type state struct {
	model *lp.Model
	opts  *config.Options
	n, m  int

	cost, lower, upper []float64

	basic  []int
	where  []int
	status []lp.BasisStatus
	x      []float64

	factor     *Factor
	iterations int
}

func newState(model *lp.Model, opts *config.Options) *state {
	n, m := model.NumCol, model.NumRow
	st := &state{
		model:  model,
		opts:   opts,
		n:      n,
		m:      m,
		cost:   make([]float64, n+m),
		lower:  make([]float64, n+m),
		upper:  make([]float64, n+m),
		basic:  make([]int, m),
		where:  make([]int, n+m),
		status: make([]lp.BasisStatus, n+m),
		x:      make([]float64, n+m),
	}
	sense := float64(model.Sense)
	for j := 0; j < n; j++ {
		st.cost[j] = sense * model.ColCost[j]
		st.lower[j] = model.ColLower[j]
		st.upper[j] = model.ColUpper[j]
	}
	for i := 0; i < m; i++ {
		st.lower[n+i] = -model.RowUpper[i]
		st.upper[n+i] = -model.RowLower[i]
	}
	return st
}

func (st *state) slackStart() {
	for j := range st.where {
		st.where[j] = -1
		st.status[j] = lp.NonbasicStatus(st.lower[j], st.upper[j], 0)
	}
	for i := 0; i < st.m; i++ {
		st.basic[i] = st.n + i
		st.where[st.n+i] = i
		st.status[st.n+i] = lp.BasisStatusBasic
	}
	st.factor = NewFactor(st.model, st.basic)
}

// warmStart adopts a consistent basis. It reports false if the basis
// matrix is singular.
func (st *state) warmStart(b lp.Basis) bool {
	pos := 0
	set := func(j int, s lp.BasisStatus) {
		if s == lp.BasisStatusBasic {
			st.basic[pos] = j
			st.where[j] = pos
			st.status[j] = s
			pos++
			return
		}
		st.where[j] = -1
		st.status[j] = fitStatus(s, st.lower[j], st.upper[j])
	}
	for j, s := range b.ColStatus {
		set(j, s)
	}
	for i, s := range b.RowStatus {
		// the logical moves opposite to the row activity
		switch s {
		case lp.BasisStatusLower:
			s = lp.BasisStatusUpper
		case lp.BasisStatusUpper:
			s = lp.BasisStatusLower
		}
		set(st.n+i, s)
	}

	st.factor = NewFactor(st.model, st.basic)
	return st.factor.HasInvertibleRepresentation()
}

// fitStatus keeps a nonbasic tag if it matches the bounds.
func fitStatus(s lp.BasisStatus, lower, upper float64) lp.BasisStatus {
	switch {
	case s == lp.BasisStatusLower && lower > lp.NegInf() && lower < upper,
		s == lp.BasisStatusUpper && upper < lp.Inf() && lower < upper,
		s == lp.BasisStatusZero && lower == lp.NegInf() && upper == lp.Inf(),
		s == lp.BasisStatusNonbasic && lower == upper:
		return s
	}
	return lp.NonbasicStatus(lower, upper, 0)
}

// column returns the entries of variable j of [A I].
func (st *state) column(j int) ([]int, []float64) {
	if j >= st.n {
		return []int{j - st.n}, []float64{1}
	}
	return st.model.Column(j)
}

func (st *state) dot(j int, y []float64) float64 {
	rows, vals := st.column(j)
	v := 0.0
	for k, i := range rows {
		v += vals[k] * y[i]
	}
	return v
}

// computeBasicValues places nonbasics at their bounds and solves for the
// basic values.
func (st *state) computeBasicValues() {
	rhs := make([]float64, st.m)
	for j := range st.x {
		if st.where[j] >= 0 {
			continue
		}
		st.x[j] = lp.NonbasicValue(st.status[j], st.lower[j], st.upper[j])
		if st.x[j] == 0 {
			continue
		}
		rows, vals := st.column(j)
		for k, i := range rows {
			rhs[i] -= vals[k] * st.x[j]
		}
	}
	xb := st.factor.solve(rhs, false)
	for i, j := range st.basic {
		st.x[j] = xb[i]
	}
}

// phaseCosts returns the basic costs of the current phase: the phase 1
// costs when some basic variable is infeasible, the objective otherwise.
func (st *state) phaseCosts() (costB []float64, phase1 bool) {
	tol := st.opts.PrimalFeasibilityTolerance
	costB = make([]float64, st.m)
	for i, j := range st.basic {
		switch {
		case st.x[j] < st.lower[j]-tol:
			costB[i] = -1
			phase1 = true
		case st.x[j] > st.upper[j]+tol:
			costB[i] = 1
			phase1 = true
		}
	}
	if phase1 {
		return costB, true
	}
	for i, j := range st.basic {
		costB[i] = st.cost[j]
	}
	return costB, false
}

func (st *state) iterate(ctx context.Context, limit interface{ Exceeded() bool }) (outcome, error) {
	degenerate := 0

	for {
		if !st.factor.HasInvertibleRepresentation() {
			return 0, fmt.Errorf("basis matrix became singular after %d iterations", st.iterations)
		}
		st.computeBasicValues()

		costB, phase1 := st.phaseCosts()
		y := st.factor.solve(costB, true)

		d, err := st.price(ctx, y, phase1)
		if err != nil {
			return 0, err
		}
		q := st.chooseEntering(d, degenerate >= degenerateLimit)
		if q < 0 {
			if phase1 {
				return outcomeInfeasible, nil
			}
			return outcomeOptimal, nil
		}

		if st.iterations >= st.opts.SimplexIterationLimit {
			return outcomeIterationLimit, nil
		}
		if ctx.Err() != nil || (limit != nil && limit.Exceeded()) {
			return outcomeTimeLimit, nil
		}

		dir := 1.0
		if d[q] > 0 {
			dir = -1
		}
		rows, vals := st.column(q)
		aq := make([]float64, st.m)
		for k, i := range rows {
			aq[i] = vals[k]
		}
		alpha := st.factor.solve(aq, false)

		theta, leave, leaveStatus := st.ratioTest(q, dir, alpha, phase1, degenerate >= degenerateLimit)
		if math.IsInf(theta, 1) {
			if phase1 {
				return 0, fmt.Errorf("unbounded step in phase 1 at iteration %d", st.iterations)
			}
			return outcomeUnbounded, nil
		}

		if theta < 1e-12 {
			degenerate++
		} else {
			degenerate = 0
		}
		st.iterations++

		if leave < 0 {
			// bound flip of the entering variable
			if st.status[q] == lp.BasisStatusLower {
				st.status[q] = lp.BasisStatusUpper
			} else {
				st.status[q] = lp.BasisStatusLower
			}
			continue
		}

		out := st.basic[leave]
		st.basic[leave] = q
		st.where[q] = leave
		st.status[q] = lp.BasisStatusBasic
		st.where[out] = -1
		st.status[out] = leaveStatus
		st.factor = NewFactor(st.model, st.basic)
	}
}

// ratioTest returns the step length, the basic position leaving the basis
// (-1 for a bound flip of the entering variable) and the status the leaving
// variable takes.
func (st *state) ratioTest(q int, dir float64, alpha []float64, phase1, bland bool) (float64, int, lp.BasisStatus) {
	tol := st.opts.PrimalFeasibilityTolerance

	theta := math.Inf(1)
	leave := -1
	var leaveStatus lp.BasisStatus
	if st.lower[q] > lp.NegInf() && st.upper[q] < lp.Inf() {
		theta = st.upper[q] - st.lower[q]
	}

	for i, j := range st.basic {
		a := alpha[i]
		if math.Abs(a) <= pivotTolerance {
			continue
		}
		// rate of change of x_j along the step
		delta := -dir * a
		xj, lo, hi := st.x[j], st.lower[j], st.upper[j]

		var t float64
		var s lp.BasisStatus
		switch {
		case phase1 && xj < lo-tol:
			if delta <= 0 {
				continue
			}
			t, s = (lo-xj)/delta, lp.BasisStatusLower
		case phase1 && xj > hi+tol:
			if delta >= 0 {
				continue
			}
			t, s = (hi-xj)/delta, lp.BasisStatusUpper
		case delta < 0:
			if lo == lp.NegInf() {
				continue
			}
			t, s = (lo-xj)/delta, lp.BasisStatusLower
		default:
			if hi == lp.Inf() {
				continue
			}
			t, s = (hi-xj)/delta, lp.BasisStatusUpper
		}
		if t < 0 {
			t = 0
		}
		if lo == hi {
			s = lp.BasisStatusNonbasic
		}

		better := t < theta-1e-12
		if !better && t <= theta+1e-12 && leave >= 0 {
			if bland {
				better = j < st.basic[leave]
			} else {
				better = math.Abs(a) > math.Abs(alpha[leave])
			}
		}
		if better {
			theta, leave, leaveStatus = t, i, s
		}
	}

	return theta, leave, leaveStatus
}

// chooseEntering picks the entering variable from the reduced costs: the
// most attractive one, or the lowest eligible index under Bland's rule.
func (st *state) chooseEntering(d []float64, bland bool) int {
	tol := st.opts.DualFeasibilityTolerance
	best, bestScore := -1, 0.0
	for j, dj := range d {
		if st.where[j] >= 0 {
			continue
		}
		var score float64
		switch st.status[j] {
		case lp.BasisStatusLower:
			if dj < -tol {
				score = -dj
			}
		case lp.BasisStatusUpper:
			if dj > tol {
				score = dj
			}
		case lp.BasisStatusZero:
			if math.Abs(dj) > tol {
				score = math.Abs(dj)
			}
		}
		if score == 0 {
			continue
		}
		if bland {
			return j
		}
		if score > bestScore {
			best, bestScore = j, score
		}
	}
	return best
}

// basis reports the current basis in model terms.
func (st *state) basis() lp.Basis {
	b := lp.Basis{
		Valid:     true,
		ColStatus: make([]lp.BasisStatus, st.n),
		RowStatus: make([]lp.BasisStatus, st.m),
	}
	copy(b.ColStatus, st.status[:st.n])
	for i := 0; i < st.m; i++ {
		s := st.status[st.n+i]
		switch s {
		case lp.BasisStatusLower:
			s = lp.BasisStatusUpper
		case lp.BasisStatusUpper:
			s = lp.BasisStatusLower
		}
		b.RowStatus[i] = s
	}
	return b
}

/* Solution and assessment */

// computeSolution derives row activities and duals of the original model
// for column values x at the factorized basis.
func computeSolution(m *lp.Model, x []float64, factor *Factor) lp.Solution {
	sol := lp.Solution{
		ColValue: x,
		RowValue: m.RowActivity(x),
		ColDual:  make([]float64, m.NumCol),
	}

	costB := make([]float64, m.NumRow)
	for i, j := range factor.basicIndex {
		if j < m.NumCol {
			costB[i] = m.ColCost[j]
		}
	}
	sol.RowDual = factor.solve(costB, true)

	for j := 0; j < m.NumCol; j++ {
		d := m.ColCost[j]
		rows, vals := m.Column(j)
		for k, i := range rows {
			d -= vals[k] * sol.RowDual[i]
		}
		sol.ColDual[j] = d
	}
	return sol
}

// assess measures primal and dual infeasibilities of sol against m.
func assess(m *lp.Model, sol *lp.Solution, b *lp.Basis, opts *config.Options) lp.Info {
	info := lp.Info{ObjectiveValue: m.Objective(sol.ColValue)}
	ptol, dtol := opts.PrimalFeasibilityTolerance, opts.DualFeasibilityTolerance

	primal := func(v, lo, hi float64) {
		inf := math.Max(lo-v, v-hi)
		if inf > ptol {
			info.NumPrimalInfeasibilities++
			info.SumPrimalInfeasibilities += inf
			info.MaxPrimalInfeasibility = math.Max(info.MaxPrimalInfeasibility, inf)
		}
	}
	// dual is in minimization terms
	dual := func(s lp.BasisStatus, dual float64) {
		var inf float64
		switch s {
		case lp.BasisStatusBasic:
			inf = math.Abs(dual)
		case lp.BasisStatusLower:
			inf = -dual
		case lp.BasisStatusUpper:
			inf = dual
		case lp.BasisStatusZero:
			inf = math.Abs(dual)
		}
		if inf > dtol {
			info.NumDualInfeasibilities++
			info.SumDualInfeasibilities += inf
			info.MaxDualInfeasibility = math.Max(info.MaxDualInfeasibility, inf)
		}
	}

	sense := float64(m.Sense)
	for j := 0; j < m.NumCol; j++ {
		primal(sol.ColValue[j], m.ColLower[j], m.ColUpper[j])
		dual(b.ColStatus[j], sense*sol.ColDual[j])
	}
	for i := 0; i < m.NumRow; i++ {
		primal(sol.RowValue[i], m.RowLower[i], m.RowUpper[i])
		// the row activity is the negated logical, so its reduced cost in
		// row terms is the row dual
		dual(b.RowStatus[i], sense*sol.RowDual[i])
	}

	info.PrimalStatus = lp.SolutionStatusFeasible
	if info.NumPrimalInfeasibilities > 0 {
		info.PrimalStatus = lp.SolutionStatusInfeasible
	}
	info.DualStatus = lp.SolutionStatusFeasible
	if info.NumDualInfeasibilities > 0 {
		info.DualStatus = lp.SolutionStatusInfeasible
	}
	return info
}
