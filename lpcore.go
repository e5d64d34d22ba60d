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
Package lpcore is the orchestration and query core of a linear programming
solver.

A Solver owns one model at a time. Run drives it through presolve, a
numerical solve (simplex or interior point), postsolve and a hot-start
re-solve of the original model, then reconciles the solution, basis and
solution info with the resulting model status. Between runs the basis of the
last solve can be queried: rows and columns of its inverse, reduced rows and
columns, and solves against arbitrary right-hand sides.

	model := lp.NewModel(2, 0)
	model.ColCost[0], model.ColCost[1] = 1, 1
	_ = model.AddDenseRow(1, []float64{1, 1}, lp.Inf())

	solver, _ := lpcore.New()
	if _, err := solver.PassModel(model); err != nil {
		// handle invalid model
	}
	status, err := solver.Run(context.Background())
	// status is the call outcome; solver.ModelStatus(false) the model status
	fmt.Println(status, err, solver.ModelStatus(false), solver.Info().ObjectiveValue)

The presolve engine, the numerical methods and the model reader are
collaborators behind the Presolver, LPSolver and ModelReader interfaces;
the packages presolve, simplex, ipm and modelio provide the defaults.
*/
package lpcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/ipm"
	"github.com/costela/lpcore/lp"
	"github.com/costela/lpcore/modelio"
	"github.com/costela/lpcore/presolve"
	"github.com/costela/lpcore/simplex"
	"github.com/costela/lpcore/timer"
)

/* Collaborators */

// Presolver reduces a model before it is solved and maps the reduced
// solution back afterwards.
type Presolver interface {
	Init(m *lp.Model, clock *timer.Clock, opts *config.Options)
	Run(ctx context.Context) presolve.Status
	ReducedProblem() *lp.Model
	SetBasisInfo(col, row []lp.BasisStatus)
	Postsolve(reduced lp.Solution) (presolve.PostsolveStatus, lp.Solution)
	RecoveredBasis() lp.Basis
	Reductions() presolve.Reductions
}

// LPSolver solves the model of a working copy, replacing its solution,
// basis, statuses, info and factorization. It must not retain wc.
type LPSolver interface {
	Solve(ctx context.Context, wc *lp.WorkingCopy, opts *config.Options, label string) (lp.Status, error)
}

// ModelReader loads the model Run falls back to when none is loaded.
type ModelReader interface {
	ReadModel(path string) (*lp.Model, error)
}

/* Types */

// Solver is the entry point of the package. Its methods are serialized by
// an internal mutex; queries must not be expected to observe a run in
// progress.
type Solver struct {
	mu sync.Mutex

	model   *lp.Model
	store   store
	options config.Options

	scaledStatus   lp.ModelStatus
	unscaledStatus lp.ModelStatus
	solution       lp.Solution
	basis          lp.Basis
	info           lp.Info
	reductions     presolve.Reductions

	clock     *timer.Clock
	presolver Presolver
	methods   map[string]LPSolver
	reader    ModelReader

	logger    *slog.Logger
	telemetry *telemetry
}

// New returns a solver with default options and no model.
func New(opts ...Option) (*Solver, error) {
	s := &Solver{
		options:   config.Default(),
		clock:     timer.New(),
		methods:   make(map[string]LPSolver),
		logger:    discardLogger(),
		telemetry: newTelemetry(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("applying solver option: %w", err)
		}
	}

	s.finishInitialization()

	return s, nil
}

func (s *Solver) finishInitialization() {
	if _, ok := s.methods[config.SolverSimplex]; !ok {
		s.methods[config.SolverSimplex] = simplex.New(s.logger, s.clock)
	}
	if _, ok := s.methods[config.SolverIPM]; !ok {
		s.methods[config.SolverIPM] = ipm.New(s.logger, s.clock)
	}
	if s.presolver == nil {
		s.presolver = presolve.New(s.logger)
	}
	if s.reader == nil {
		s.reader = modelio.FileReader{}
	}
	s.telemetry.logger = s.logger
}

/* Model lifecycle */

// PassModel validates m and makes a copy of it the solver's model. Any
// previous solution, basis and status are discarded.
func (s *Solver) PassModel(m *lp.Model) (lp.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.passModel(m)
}

func (s *Solver) passModel(m *lp.Model) (lp.Status, error) {
	if m == nil {
		s.setStatus(lp.ModelStatusLoadError)
		return lp.StatusError, lp.NewError("PassModel", lp.ErrLoad, "nil model")
	}
	if err := m.Validate(); err != nil {
		s.clearSolver()
		s.setStatus(lp.ModelStatusModelError)
		s.logger.Error("rejecting invalid model", slog.String("model", m.Name), slog.Any("error", err))
		return lp.StatusError, err
	}

	s.model = m.Clone()
	s.store.reset(s.model)
	s.clearSolver()
	s.logger.Debug("model loaded", modelAttrs(s.model))

	return lp.StatusOK, nil
}

// ReadModel loads the model stored at path through the configured
// ModelReader.
func (s *Solver) ReadModel(path string) (lp.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readModel(path)
}

func (s *Solver) readModel(path string) (lp.Status, error) {
	m, err := s.reader.ReadModel(path)
	if err != nil {
		s.clearSolver()
		if errors.Is(err, lp.ErrModel) {
			s.setStatus(lp.ModelStatusModelError)
			return lp.StatusError, err
		}
		s.setStatus(lp.ModelStatusLoadError)
		return lp.StatusError, lp.NewError("ReadModel", lp.ErrLoad, err.Error())
	}
	return s.passModel(m)
}

// ClearModel discards the model together with every result derived from
// it.
func (s *Solver) ClearModel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = nil
	s.store.clear()
	s.clearSolver()
	s.reductions = presolve.Reductions{}
}

func (s *Solver) clearSolver() {
	s.setStatus(lp.ModelStatusNotSet)
	s.solution.Clear()
	s.clearBasis()
	s.info.Clear()
}

func (s *Solver) setStatus(status lp.ModelStatus) {
	s.scaledStatus = status
	s.unscaledStatus = status
}

/* Accessors */

// Model returns a copy of the loaded model, or nil.
func (s *Solver) Model() *lp.Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return nil
	}
	return s.model.Clone()
}

func (s *Solver) Solution() lp.Solution {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.solution.Clone()
}

func (s *Solver) Basis() lp.Basis {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.basis.Clone()
}

// ModelStatus returns the status of the last run, for the scaled LP when
// scaled is set.
func (s *Solver) ModelStatus(scaled bool) lp.ModelStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scaled {
		return s.scaledStatus
	}
	return s.unscaledStatus
}

func (s *Solver) Info() lp.Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.info
}

// RunTime is the time accumulated by all runs of the solver.
func (s *Solver) RunTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clock.RunTime()
}

// PresolveReductions reports what the last presolve removed.
func (s *Solver) PresolveReductions() presolve.Reductions {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reductions
}

func (s *Solver) Options() config.Options {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.options
}

// SetOptions replaces the options after validating them.
func (s *Solver) SetOptions(opts config.Options) error {
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.options = opts
	return nil
}

/* Basis and solution */

// SetBasis installs a caller basis. The next Run starts from it and skips
// presolve.
func (s *Solver) SetBasis(b lp.Basis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return lp.NewError("SetBasis", lp.ErrLoad, "no model loaded")
	}
	if !b.Consistent(s.model) {
		return lp.NewError("SetBasis", lp.ErrInvalidBasis, fmt.Sprintf(
			"%d column and %d row statuses with %d basic for a %dx%d model",
			len(b.ColStatus), len(b.RowStatus), b.NumBasic(), s.model.NumRow, s.model.NumCol))
	}

	s.basis = b.Clone()
	s.basis.Valid = true
	s.store.original.Factor = nil
	return nil
}

// ClearBasis invalidates the basis and the factorization derived from it.
func (s *Solver) ClearBasis() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearBasis()
}

func (s *Solver) clearBasis() {
	s.basis.Clear()
	if wc := s.store.original; wc != nil {
		wc.Basis.Valid = false
		wc.Factor = nil
	}
}

// SetSolution installs a caller solution. Each part may be empty. Row
// values are derived from given column values and column duals from given
// row duals.
func (s *Solver) SetSolution(sol lp.Solution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.model
	if m == nil {
		return lp.NewError("SetSolution", lp.ErrLoad, "no model loaded")
	}
	if n := len(sol.ColValue); n != 0 && n != m.NumCol {
		return lp.NewError("SetSolution", lp.ErrInvalidSolution, fmt.Sprintf("%d column values for %d columns", n, m.NumCol))
	}
	if n := len(sol.ColDual); n != 0 && n != m.NumCol {
		return lp.NewError("SetSolution", lp.ErrInvalidSolution, fmt.Sprintf("%d column duals for %d columns", n, m.NumCol))
	}
	if n := len(sol.RowDual); n != 0 && n != m.NumRow {
		return lp.NewError("SetSolution", lp.ErrInvalidSolution, fmt.Sprintf("%d row duals for %d rows", n, m.NumRow))
	}

	s.solution.Resize(m.NumCol, m.NumRow)
	if len(sol.ColValue) > 0 {
		copy(s.solution.ColValue, sol.ColValue)
		s.solution.RowValue = m.RowActivity(s.solution.ColValue)
	}
	if len(sol.ColDual) > 0 {
		copy(s.solution.ColDual, sol.ColDual)
	}
	if len(sol.RowDual) > 0 {
		copy(s.solution.RowDual, sol.RowDual)
		for j := 0; j < m.NumCol; j++ {
			d := m.ColCost[j]
			rows, vals := m.Column(j)
			for k, i := range rows {
				d -= vals[k] * sol.RowDual[i]
			}
			s.solution.ColDual[j] = d
		}
	}
	return nil
}
