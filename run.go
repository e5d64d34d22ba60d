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
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/lp"
	"github.com/costela/lpcore/presolve"
	"github.com/costela/lpcore/timer"
)

// run carries the state of one call to Solver.Run.
type run struct {
	s      *Solver
	logger *slog.Logger

	// stopped marks a run that ended before any solver was dispatched
	stopped    bool
	times      phaseTimes
	iterations lp.IterationCounts
}

// Run solves the loaded model, or the model named by the model_file option
// if none is loaded. The returned status is the call outcome; the model
// status, solution, basis and info are available from the solver
// afterwards and are always consistent with each other.
//
// Presolve runs unless disabled or a valid basis is present. A reduced LP
// is solved, mapped back by postsolve and the original LP re-solved from
// the recovered basis. Errors unwrap to the sentinels of package lp.
func (s *Solver) Run(ctx context.Context) (lp.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.NewString()
	ctx, span := s.telemetry.startRun(ctx, runID, s.model)

	r := &run{
		s:      s,
		logger: s.logger.With(slog.String("run_id", runID)),
		times:  newPhaseTimes(),
	}
	status, err := r.execute(ctx)
	s.store.dropReduced()
	s.reconcile()

	s.telemetry.endRun(ctx, span, s.scaledStatus, status, r.iterations, err)
	r.logger.Info("run finished",
		slog.String("call_status", status.String()),
		slog.String("model_status", s.unscaledStatus.String()),
	)

	return status, err
}

func (r *run) execute(ctx context.Context) (lp.Status, error) {
	s := r.s

	if s.model == nil {
		if s.options.ModelFile == "" {
			s.clearSolver()
			s.setStatus(lp.ModelStatusLoadError)
			r.logger.Error("no model can be loaded")
			return lp.StatusError, lp.NewError("Run", lp.ErrLoad, "no model loaded and no model file configured")
		}
		if status, err := s.readModel(s.options.ModelFile); status == lp.StatusError {
			return status, err
		}
	}

	original := s.store.get(OriginalCopy)
	original.ResetResults()
	original.Solution.Clear()
	original.Basis = s.basis.Clone()
	original.Iterations = lp.IterationCounts{}
	defer r.publish()

	if s.model.NumCol == 0 {
		original.SetStatus(lp.ModelStatusModelEmpty)
		return lp.StatusOK, nil
	}
	r.logger.Debug("solving", modelAttrs(s.model))

	if s.clock.StartRun() {
		defer s.clock.StopRun()
	}
	initial := s.clock.RunTime()

	var status lp.Status
	var err error
	if !s.basis.Valid && s.options.Presolve != config.Off {
		status, err = r.presolveAndSolve(ctx)
	} else {
		status, err = r.solveOriginal(ctx, "Solving LP without presolve or with basis")
	}
	if status == lp.StatusError || r.stopped {
		return status, err
	}
	r.times.report(r.logger, s.clock.RunTime()-initial)

	return lp.Worst(status, original.ScaledStatus.CallStatus()), err
}

// publish copies the results of the original copy to the solver. They
// always have the dimensions of the original LP.
func (r *run) publish() {
	s := r.s
	original := s.store.get(OriginalCopy)
	s.scaledStatus = original.ScaledStatus
	s.unscaledStatus = original.UnscaledStatus
	s.solution = original.Solution.Clone()
	s.basis = original.Basis.Clone()
	s.info = original.Info
	s.info.Iterations = original.Iterations
}

func (r *run) presolveAndSolve(ctx context.Context) (lp.Status, error) {
	s := r.s
	original := s.store.get(OriginalCopy)

	// postsolve needs a basic solution of the reduced LP
	if s.options.Solver == config.SolverIPM && !s.options.RunCrossover {
		r.logger.Warn("forcing crossover after presolve")
		defer override{runCrossover: ptr(true)}.apply(&s.options)()
	}

	presolveStatus := r.presolve(ctx)
	switch presolveStatus {
	case presolve.StatusNotPresolved:
		return r.solveOriginal(ctx, "Not presolved: solving the LP")

	case presolve.StatusNotReduced:
		r.logger.Info("problem not reduced by presolve")
		return r.solveOriginal(ctx, "Problem not reduced by presolve: solving the LP")

	case presolve.StatusReduced:
		reducedModel := s.presolver.ReducedProblem()
		if reducedModel == nil {
			original.SetStatus(lp.ModelStatusPresolveError)
			return lp.StatusError, lp.NewError("presolve", lp.ErrPresolve, "no reduced model")
		}
		if err := reducedModel.Validate(); err != nil {
			original.SetStatus(lp.ModelStatusPresolveError)
			return lp.StatusError, lp.NewError("presolve", lp.ErrPresolve, err.Error())
		}
		if reducedModel.NumCol > s.model.NumCol || reducedModel.NumRow > s.model.NumRow {
			panic(fmt.Sprintf("lpcore: reduced LP %dx%d larger than the original %dx%d",
				reducedModel.NumRow, reducedModel.NumCol, s.model.NumRow, s.model.NumCol))
		}
		r.logger.Info("presolve reduced the problem",
			slog.Int("rows", reducedModel.NumRow),
			slog.Int("cols", reducedModel.NumCol),
			slog.Int("rows_removed", s.reductions.RowsRemoved),
			slog.Int("cols_removed", s.reductions.ColsRemoved),
			slog.Int("nonzeros_removed", s.reductions.NonzerosRemoved),
		)
		return r.solvePresolved(ctx, s.store.pushReduced(reducedModel))

	case presolve.StatusReducedToEmpty:
		r.logger.Info("presolve reduced the problem to empty")
		original.SetStatus(lp.ModelStatusOptimal)
		return r.postsolve(ctx, lp.Solution{}, lp.Basis{}, lp.StatusOK)

	case presolve.StatusInfeasible, presolve.StatusUnbounded:
		status := lp.ModelStatusPrimalInfeasible
		if presolveStatus == presolve.StatusUnbounded {
			status = lp.ModelStatusPrimalUnbounded
		}
		r.logger.Info("problem status detected on presolve", slog.String("model_status", status.String()))
		original.SetStatus(status)
		r.stopped = true
		return lp.StatusOK, nil

	case presolve.StatusTimeout:
		r.logger.Warn("presolve reached timeout")
		original.SetStatus(lp.ModelStatusPresolveError)
		r.stopped = true
		return lp.StatusWarning, nil
	}

	r.logger.Error("presolve failed", slog.String("presolve_status", presolveStatus.String()))
	original.SetStatus(lp.ModelStatusPresolveError)
	return lp.StatusError, lp.NewError("presolve", lp.ErrPresolve, presolveStatus.String())
}

func (r *run) presolve(ctx context.Context) presolve.Status {
	s := r.s
	ctx, span := s.telemetry.startPhase(ctx, "presolve", OriginalCopy)

	s.clock.Start(timer.Presolve)
	s.presolver.Init(s.model, s.clock, &s.options)
	status := s.presolver.Run(ctx)
	r.times.presolve = s.clock.Stop(timer.Presolve)
	s.reductions = s.presolver.Reductions()

	var err error
	switch status {
	case presolve.StatusTimeout, presolve.StatusOptionsError, presolve.StatusError:
		err = fmt.Errorf("%w: %s", lp.ErrPresolve, status)
	}
	s.telemetry.endPhase(ctx, span, "presolve", r.times.presolve, err)

	return status
}

// solvePresolved solves the reduced copy id and continues with postsolve
// if it is optimal.
func (r *run) solvePresolved(ctx context.Context, id WorkingCopyID) (lp.Status, error) {
	s := r.s
	original := s.store.get(OriginalCopy)
	reduced := s.store.get(id)

	status, err := r.solveWith(ctx, id, "Solving the presolved LP", &r.times.solvePresolved,
		// objective values of the reduced LP are offset from the original ones
		override{dualObjectiveBound: ptr(math.Inf(1))},
	)
	original.Iterations = original.Iterations.Add(reduced.Iterations)
	if status == lp.StatusError {
		return status, err
	}

	switch reduced.ScaledStatus {
	case lp.ModelStatusOptimal:
		return r.postsolve(ctx, reduced.Solution, reduced.Basis, status)
	case lp.ModelStatusPrimalInfeasible, lp.ModelStatusPrimalUnbounded,
		lp.ModelStatusReachedTimeLimit, lp.ModelStatusReachedIterationLimit:
		original.ScaledStatus = reduced.ScaledStatus
		original.UnscaledStatus = reduced.UnscaledStatus
		return status, err
	}

	// no fallback to solving without presolve: the caller decides on a retry
	r.logger.Error("presolved LP not solved", slog.String("model_status", reduced.ScaledStatus.String()))
	original.SetStatus(lp.ModelStatusSolveError)
	return lp.StatusError, lp.NewError("Run", lp.ErrSolve, "presolved LP ended with status "+reduced.ScaledStatus.String())
}

// postsolve maps the optimal reduced solution back and re-solves the
// original LP from the recovered basis.
func (r *run) postsolve(ctx context.Context, reducedSolution lp.Solution, reducedBasis lp.Basis, status lp.Status) (lp.Status, error) {
	s := r.s
	original := s.store.get(OriginalCopy)

	pctx, span := s.telemetry.startPhase(ctx, "postsolve", OriginalCopy)
	s.clock.Start(timer.Postsolve)
	s.presolver.SetBasisInfo(reducedBasis.ColStatus, reducedBasis.RowStatus)
	postsolveStatus, recovered := s.presolver.Postsolve(reducedSolution)
	r.times.postsolve = s.clock.Stop(timer.Postsolve)

	if postsolveStatus != presolve.PostsolveSolutionRecovered {
		err := lp.NewError("postsolve", lp.ErrPostsolve, postsolveStatus.String())
		s.telemetry.endPhase(pctx, span, "postsolve", r.times.postsolve, err)
		r.logger.Error("postsolve failed", slog.String("postsolve_status", postsolveStatus.String()))
		original.SetStatus(lp.ModelStatusPostsolveError)
		return lp.StatusError, err
	}
	s.telemetry.endPhase(pctx, span, "postsolve", r.times.postsolve, nil)
	if !recovered.Consistent(s.model) {
		panic(fmt.Sprintf("lpcore: postsolve recovered %d column and %d row values for a %dx%d model",
			len(recovered.ColValue), len(recovered.RowValue), s.model.NumRow, s.model.NumCol))
	}

	original.ResetResults()
	original.Solution = recovered
	original.Basis = s.presolver.RecoveredBasis()

	before := original.Iterations.Simplex
	hotStatus, err := r.solveWith(ctx, OriginalCopy,
		"Solving the original LP from the solution after postsolve",
		&r.times.solveOriginal, hotStartOverride())
	r.times.postsolveIters = original.Iterations.Simplex - before
	r.times.hasPostsolveRun = true

	return lp.Worst(status, hotStatus), err
}

func (r *run) solveOriginal(ctx context.Context, label string) (lp.Status, error) {
	return r.solveWith(ctx, OriginalCopy, label, &r.times.solveOriginal, override{})
}

// solveWith dispatches the working copy id to the configured method with
// o applied to the options for the length of the call.
func (r *run) solveWith(ctx context.Context, id WorkingCopyID, label string, elapsed *time.Duration, o override) (lp.Status, error) {
	s := r.s
	defer o.apply(&s.options)()

	wc := s.store.get(id)
	name, method := s.method()
	r.logger.Debug(label, slog.String("method", name), slog.String("working_copy", id.String()))

	ctx, span := s.telemetry.startPhase(ctx, "solve", id)
	before := wc.Iterations
	s.clock.Start(timer.Solve)
	status, err := method.Solve(ctx, wc, &s.options, label)
	*elapsed = s.clock.Stop(timer.Solve)
	r.iterations = r.iterations.Add(wc.Iterations.Sub(before))

	if status == lp.StatusError {
		if err == nil {
			err = lp.NewError("solve", lp.ErrSolve, label)
		}
		if !wc.ScaledStatus.IsError() {
			wc.SetStatus(lp.ModelStatusSolveError)
		}
		if id != OriginalCopy {
			original := s.store.get(OriginalCopy)
			original.ScaledStatus = wc.ScaledStatus
			original.UnscaledStatus = wc.UnscaledStatus
		}
		r.logger.Error("solve failed", slog.String("working_copy", id.String()), slog.Any("error", err))
	}
	s.telemetry.endPhase(ctx, span, "solve", *elapsed, err)

	return status, err
}

// method returns the LP solver selected by the solver option. "choose"
// selects the simplex solver.
func (s *Solver) method() (string, LPSolver) {
	name := config.SolverSimplex
	if s.options.Solver == config.SolverIPM {
		name = config.SolverIPM
	}
	return name, s.methods[name]
}
