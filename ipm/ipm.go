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

// Package ipm implements a Mehrotra predictor-corrector interior point
// method with an optional crossover to a basic solution through the simplex
// solver.
package ipm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/lp"
	"github.com/costela/lpcore/simplex"
	"github.com/costela/lpcore/timer"
)

const (
	stepFactor     = 0.99
	regularization = 1e-10
	divergence     = 1e12
)

type result int

const (
	resultOptimal result = iota
	resultIterationLimit
	resultTimeLimit
	resultDiverged
)

var errFactorization = errors.New("normal equations could not be factorized")

// Solver solves working copies with the interior point method.
type Solver struct {
	logger    *slog.Logger
	clock     *timer.Clock
	crossover *simplex.Solver
}

// New returns an interior point solver. The clock provides the run time
// checked against the time limit; nil disables the check.
func New(logger *slog.Logger, clock *timer.Clock) *Solver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Solver{
		logger:    logger,
		clock:     clock,
		crossover: simplex.New(logger, clock),
	}
}

// Solve runs the interior point method on wc. With RunCrossover set the
// interior solution seeds a simplex solve that yields a basic solution,
// otherwise wc is left without a valid basis.
func (s *Solver) Solve(ctx context.Context, wc *lp.WorkingCopy, opts *config.Options, label string) (lp.Status, error) {
	model := wc.Model
	wc.Factor = nil

	sf := newStandardForm(model)
	if sf.a == nil {
		s.logger.Debug("no constraints in standard form, handing over to simplex", slog.String("label", label))
		return s.runCrossover(ctx, wc, opts, label, make([]float64, model.NumCol))
	}

	it := &iterate{sf: sf, opts: opts, clock: s.clock}
	res, err := it.run(ctx)
	wc.Iterations.IPM += it.iterations
	if err != nil {
		wc.SetStatus(lp.ModelStatusSolveError)
		return lp.StatusError, lp.NewError("ipm", lp.ErrSolve, err.Error())
	}

	x := sf.columnValues(it.x, model.NumCol)
	s.logger.Debug("interior point finished",
		slog.String("label", label),
		slog.Int("iterations", it.iterations),
		slog.Int("result", int(res)),
	)

	if opts.RunCrossover {
		return s.runCrossover(ctx, wc, opts, label, x)
	}

	var status lp.ModelStatus
	switch res {
	case resultOptimal:
		status = lp.ModelStatusOptimal
	case resultIterationLimit:
		status = lp.ModelStatusReachedIterationLimit
	case resultTimeLimit:
		status = lp.ModelStatusReachedTimeLimit
	case resultDiverged:
		wc.SetStatus(lp.ModelStatusSolveError)
		return lp.StatusError, lp.NewError("ipm", lp.ErrSolve, "iterates diverged, the model may be infeasible or unbounded")
	}

	sense := float64(model.Sense)
	rowDual := make([]float64, model.NumRow)
	for i := range rowDual {
		rowDual[i] = sense * it.y[i]
	}
	wc.Solution = lp.Solution{
		ColValue: x,
		ColDual:  make([]float64, model.NumCol),
		RowValue: model.RowActivity(x),
		RowDual:  rowDual,
	}
	for j := 0; j < model.NumCol; j++ {
		d := model.ColCost[j]
		rows, vals := model.Column(j)
		for k, i := range rows {
			d -= vals[k] * rowDual[i]
		}
		wc.Solution.ColDual[j] = d
	}
	wc.Basis.Invalidate(model.NumCol, model.NumRow)
	wc.Info = primalInfo(model, &wc.Solution, opts.PrimalFeasibilityTolerance)
	wc.Info.Iterations = wc.Iterations
	wc.SetStatus(status)

	return status.CallStatus(), nil
}

// runCrossover seeds the simplex solver with the slack basis whose
// nonbasic columns sit at the bound nearest to x.
func (s *Solver) runCrossover(ctx context.Context, wc *lp.WorkingCopy, opts *config.Options, label string, x []float64) (lp.Status, error) {
	model := wc.Model
	basis := lp.SlackBasis(model)
	for j := range basis.ColStatus {
		basis.ColStatus[j] = lp.NonbasicStatus(model.ColLower[j], model.ColUpper[j], x[j])
	}
	wc.Basis = basis

	before := wc.Iterations.Simplex
	status, err := s.crossover.Solve(ctx, wc, opts, label+" (crossover)")
	wc.Iterations.Crossover += wc.Iterations.Simplex - before
	wc.Iterations.Simplex = before
	wc.Info.Iterations = wc.Iterations

	return status, err
}

func primalInfo(m *lp.Model, sol *lp.Solution, tol float64) lp.Info {
	info := lp.Info{
		ObjectiveValue: m.Objective(sol.ColValue),
		DualStatus:     lp.SolutionStatusNotSet,
	}
	check := func(v, lo, hi float64) {
		if inf := math.Max(lo-v, v-hi); inf > tol {
			info.NumPrimalInfeasibilities++
			info.SumPrimalInfeasibilities += inf
			info.MaxPrimalInfeasibility = math.Max(info.MaxPrimalInfeasibility, inf)
		}
	}
	for j := 0; j < m.NumCol; j++ {
		check(sol.ColValue[j], m.ColLower[j], m.ColUpper[j])
	}
	for i := 0; i < m.NumRow; i++ {
		check(sol.RowValue[i], m.RowLower[i], m.RowUpper[i])
	}
	info.PrimalStatus = lp.SolutionStatusFeasible
	if info.NumPrimalInfeasibilities > 0 {
		info.PrimalStatus = lp.SolutionStatusInfeasible
	}
	return info
}

/* Predictor-corrector iterations */

type iterate struct {
	sf    *standardForm
	opts  *config.Options
	clock *timer.Clock

	x, y, s    []float64
	iterations int
}

func (it *iterate) run(ctx context.Context) (result, error) {
	a, b, c := it.sf.a, it.sf.b, it.sf.c
	_, q := a.Dims()

	if err := it.start(); err != nil {
		return 0, err
	}

	normB, normC := floats.Norm(b, 2), floats.Norm(c, 2)
	tol := it.opts.IPMOptimalityTolerance

	for {
		rb := sub(mulVec(a, it.x, false), b)
		rc := sub(add(mulVec(a, it.y, true), it.s), c)
		cx, by := floats.Dot(c, it.x), floats.Dot(b, it.y)
		mu := floats.Dot(it.x, it.s) / float64(q)

		if floats.Norm(rb, 2)/(1+normB) < tol &&
			floats.Norm(rc, 2)/(1+normC) < tol &&
			math.Abs(cx-by)/(1+math.Abs(cx)) < tol {
			return resultOptimal, nil
		}
		if floats.Norm(it.x, math.Inf(1)) > divergence || floats.Norm(it.y, math.Inf(1)) > divergence {
			return resultDiverged, nil
		}
		if it.iterations >= it.opts.IPMIterationLimit {
			return resultIterationLimit, nil
		}
		if ctx.Err() != nil || (it.clock != nil && it.clock.Exceeded(it.opts.TimeLimitDuration())) {
			return resultTimeLimit, nil
		}

		d := make([]float64, q)
		for j := range d {
			d[j] = it.x[j] / it.s[j]
		}
		chol, err := normalEquations(a, d)
		if err != nil {
			return 0, err
		}

		// predictor
		rxs := make([]float64, q)
		for j := range rxs {
			rxs[j] = -it.x[j] * it.s[j]
		}
		dxAff, _, dsAff := it.direction(chol, d, rb, rc, rxs)
		alphaP := maxStep(it.x, dxAff)
		alphaD := maxStep(it.s, dsAff)

		muAff := 0.0
		for j := 0; j < q; j++ {
			muAff += (it.x[j] + alphaP*dxAff[j]) * (it.s[j] + alphaD*dsAff[j])
		}
		muAff /= float64(q)
		sigma := math.Pow(muAff/mu, 3)

		// corrector
		for j := range rxs {
			rxs[j] = -it.x[j]*it.s[j] - dxAff[j]*dsAff[j] + sigma*mu
		}
		dx, dy, ds := it.direction(chol, d, rb, rc, rxs)
		alphaP = math.Min(1, stepFactor*maxStep(it.x, dx))
		alphaD = math.Min(1, stepFactor*maxStep(it.s, ds))

		floats.AddScaled(it.x, alphaP, dx)
		floats.AddScaled(it.y, alphaD, dy)
		floats.AddScaled(it.s, alphaD, ds)
		it.iterations++
	}
}

// start computes Mehrotra's starting point.
func (it *iterate) start() error {
	a, b, c := it.sf.a, it.sf.b, it.sf.c
	_, q := a.Dims()

	ones := make([]float64, q)
	for j := range ones {
		ones[j] = 1
	}
	chol, err := normalEquations(a, ones)
	if err != nil {
		return err
	}

	xt := mulVec(a, cholSolve(chol, b), true)
	yt := cholSolve(chol, mulVec(a, c, false))
	st := sub(c, mulVec(a, yt, true))

	dx := math.Max(-1.5*floats.Min(xt), 0)
	ds := math.Max(-1.5*floats.Min(st), 0)
	floats.AddConst(dx, xt)
	floats.AddConst(ds, st)

	xs := floats.Dot(xt, st)
	sumX, sumS := floats.Sum(xt), floats.Sum(st)
	if sumX > 0 && sumS > 0 {
		floats.AddConst(0.5*xs/sumS, xt)
		floats.AddConst(0.5*xs/sumX, st)
	}
	for j := range xt {
		if !(xt[j] > 0) {
			xt[j] = 1
		}
		if !(st[j] > 0) {
			st[j] = 1
		}
	}

	it.x, it.y, it.s = xt, yt, st
	return nil
}

// direction solves the Newton system for the complementarity residual rxs.
func (it *iterate) direction(chol *mat.Cholesky, d, rb, rc, rxs []float64) (dx, dy, ds []float64) {
	a := it.sf.a
	q := len(d)

	// t = S⁻¹ rxs + D rc
	t := make([]float64, q)
	for j := range t {
		t[j] = rxs[j]/it.s[j] + d[j]*rc[j]
	}
	rhs := mulVec(a, t, false)
	for i := range rhs {
		rhs[i] = -rb[i] - rhs[i]
	}
	dy = cholSolve(chol, rhs)

	aty := mulVec(a, dy, true)
	dx = make([]float64, q)
	ds = make([]float64, q)
	for j := 0; j < q; j++ {
		dx[j] = t[j] + d[j]*aty[j]
		ds[j] = -rc[j] - aty[j]
	}
	return dx, dy, ds
}

// normalEquations factorizes A·diag(d)·Aᵀ, regularized on the diagonal.
func normalEquations(a *mat.Dense, d []float64) (*mat.Cholesky, error) {
	p, q := a.Dims()
	ad := mat.NewDense(p, q, nil)
	ad.Apply(func(i, j int, v float64) float64 {
		return v * math.Sqrt(d[j])
	}, a)

	m := mat.NewSymDense(p, nil)
	m.SymOuterK(1, ad)

	reg := regularization
	for attempt := 0; attempt < 8; attempt++ {
		for i := 0; i < p; i++ {
			m.SetSym(i, i, m.At(i, i)+reg)
		}
		var chol mat.Cholesky
		if chol.Factorize(m) {
			return &chol, nil
		}
		reg *= 100
	}
	return nil, fmt.Errorf("%w (%dx%d)", errFactorization, p, p)
}

func cholSolve(chol *mat.Cholesky, b []float64) []float64 {
	n := len(b)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	dst := mat.NewVecDense(n, out)
	if err := chol.SolveVecTo(dst, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			panic(err)
		}
	}
	return out
}

// mulVec returns A·v, or Aᵀ·v when trans is set.
func mulVec(a *mat.Dense, v []float64, trans bool) []float64 {
	p, q := a.Dims()
	var m mat.Matrix = a
	rows := p
	if trans {
		m = a.T()
		rows = q
	}
	out := make([]float64, rows)
	dst := mat.NewVecDense(rows, out)
	dst.MulVec(m, mat.NewVecDense(len(v), append([]float64(nil), v...)))
	return out
}

// maxStep is the largest step along dv keeping v non-negative, capped at 1.
func maxStep(v, dv []float64) float64 {
	alpha := 1.0
	for j := range v {
		if dv[j] < 0 {
			alpha = math.Min(alpha, -v[j]/dv[j])
		}
	}
	return alpha
}

func add(a, b []float64) []float64 {
	out := append([]float64(nil), a...)
	floats.Add(out, b)
	return out
}

func sub(a, b []float64) []float64 {
	out := append([]float64(nil), a...)
	floats.Sub(out, b)
	return out
}
