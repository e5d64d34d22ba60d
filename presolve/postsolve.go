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

package presolve

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/costela/lpcore/lp"
)

// PostsolveStatus is the outcome of mapping a reduced solution back.
type PostsolveStatus int

const (
	PostsolveSolutionRecovered PostsolveStatus = iota
	PostsolveReducedSolutionDimensionError
	PostsolveNoPostsolve
	PostsolveError
)

func (s PostsolveStatus) String() string {
	switch s {
	case PostsolveSolutionRecovered:
		return "solution recovered"
	case PostsolveReducedSolutionDimensionError:
		return "reduced solution dimension error"
	case PostsolveNoPostsolve:
		return "no postsolve"
	case PostsolveError:
		return "error"
	}
	return fmt.Sprintf("PostsolveStatus(%d)", int(s))
}

// recovery is the original-space solution and basis under construction.
type recovery struct {
	model *lp.Model

	x, y               []float64
	colStatus, rowStatus []lp.BasisStatus
	withBasis          bool
}

// reducedCost is c_j - Σ a_ij y_i over the rows whose dual is known so far.
func (r *recovery) reducedCost(j int) float64 {
	d := r.model.ColCost[j]
	rows, vals := r.model.Column(j)
	for k, i := range rows {
		d -= vals[k] * r.y[i]
	}
	return d
}

type undo interface {
	apply(r *recovery)
}

type emptyRow struct {
	row int
}

func (u emptyRow) apply(r *recovery) {
	r.y[u.row] = 0
	r.rowStatus[u.row] = lp.BasisStatusBasic
}

type fixedCol struct {
	col    int
	value  float64
	status lp.BasisStatus
}

func (u fixedCol) apply(r *recovery) {
	r.x[u.col] = u.value
	r.colStatus[u.col] = u.status
}

// singletonRow records a row a·x_col ∈ [rowLower, rowUpper] turned into
// column bounds.
type singletonRow struct {
	row, col           int
	value              float64
	rowLower, rowUpper float64

	lowerFromRow, upperFromRow bool
}

func (u singletonRow) apply(r *recovery) {
	r.y[u.row] = 0
	r.rowStatus[u.row] = lp.BasisStatusBasic

	var atRowBound bool
	switch r.colStatus[u.col] {
	case lp.BasisStatusLower:
		atRowBound = u.lowerFromRow
	case lp.BasisStatusUpper:
		atRowBound = u.upperFromRow
	case lp.BasisStatusNonbasic:
		atRowBound = u.lowerFromRow || u.upperFromRow
	}
	if !atRowBound {
		return
	}

	// the row holds the column at its bound: the column turns basic and the
	// row takes over the nonbasic tag and the dual
	r.colStatus[u.col] = lp.BasisStatusBasic
	activity := u.value * r.x[u.col]
	r.rowStatus[u.row] = lp.NonbasicStatus(u.rowLower, u.rowUpper, activity)
	r.y[u.row] = r.reducedCost(u.col) / u.value
}

// duplicateCol records column dup folded into col as x_col + scale·x_dup.
type duplicateCol struct {
	col, dup           int
	scale              float64
	colLower, colUpper float64
	dupLower, dupUpper float64
}

func (u duplicateCol) apply(r *recovery) {
	v := r.x[u.col]
	status := r.colStatus[u.col]

	switch status {
	case lp.BasisStatusLower, lp.BasisStatusUpper, lp.BasisStatusNonbasic:
		pick := u.colLower + u.scale*u.dupLower
		if status == lp.BasisStatusUpper || (status == lp.BasisStatusNonbasic && math.Abs(v-pick) > math.Abs(v-(u.colUpper+u.scale*u.dupUpper))) {
			r.x[u.col], r.x[u.dup] = u.colUpper, u.dupUpper
			r.colStatus[u.col] = lp.NonbasicStatus(u.colLower, u.colUpper, u.colUpper)
			r.colStatus[u.dup] = lp.NonbasicStatus(u.dupLower, u.dupUpper, u.dupUpper)
			return
		}
		r.x[u.col], r.x[u.dup] = u.colLower, u.dupLower
		r.colStatus[u.col] = lp.NonbasicStatus(u.colLower, u.colUpper, u.colLower)
		r.colStatus[u.dup] = lp.NonbasicStatus(u.dupLower, u.dupUpper, u.dupLower)
		return
	}

	// x_dup goes to a bound and x_col absorbs the rest, unless that pushes
	// x_col out of its bounds
	dupStatus := lp.NonbasicStatus(u.dupLower, u.dupUpper, 0)
	xDup := lp.NonbasicValue(dupStatus, u.dupLower, u.dupUpper)
	xCol := v - u.scale*xDup
	if xCol >= u.colLower && xCol <= u.colUpper {
		r.x[u.col], r.x[u.dup] = xCol, xDup
		r.colStatus[u.dup] = dupStatus
		if status != lp.BasisStatusBasic {
			r.colStatus[u.col] = lp.NonbasicStatus(u.colLower, u.colUpper, xCol)
		}
		return
	}

	xCol = math.Max(u.colLower, math.Min(u.colUpper, xCol))
	r.x[u.col] = xCol
	r.x[u.dup] = (v - xCol) / u.scale
	r.colStatus[u.col] = lp.NonbasicStatus(u.colLower, u.colUpper, xCol)
	r.colStatus[u.dup] = status
}

// SetBasisInfo supplies the basis of the reduced LP for Postsolve.
func (p *Presolver) SetBasisInfo(col, row []lp.BasisStatus) {
	p.colBasis = append(p.colBasis[:0], col...)
	p.rowBasis = append(p.rowBasis[:0], row...)
}

// Postsolve maps a solution of the reduced LP onto the original LP. The
// returned solution has row values and column duals recomputed from the
// original model.
func (p *Presolver) Postsolve(reduced lp.Solution) (PostsolveStatus, lp.Solution) {
	if p.status != StatusReduced && p.status != StatusReducedToEmpty {
		return PostsolveNoPostsolve, lp.Solution{}
	}
	red := p.reduced
	if len(reduced.ColValue) != red.NumCol || len(reduced.RowValue) != red.NumRow ||
		(len(reduced.ColDual) != 0 && len(reduced.ColDual) != red.NumCol) ||
		(len(reduced.RowDual) != 0 && len(reduced.RowDual) != red.NumRow) {
		p.logger.Warn("reduced solution does not match the reduced LP",
			slog.Int("num_col", red.NumCol),
			slog.Int("num_row", red.NumRow),
			slog.Int("solution_cols", len(reduced.ColValue)),
			slog.Int("solution_rows", len(reduced.RowValue)),
		)
		return PostsolveReducedSolutionDimensionError, lp.Solution{}
	}

	m := p.model
	r := &recovery{
		model:     m,
		x:         make([]float64, m.NumCol),
		y:         make([]float64, m.NumRow),
		colStatus: make([]lp.BasisStatus, m.NumCol),
		rowStatus: make([]lp.BasisStatus, m.NumRow),
		withBasis: red.NumCol+red.NumRow == 0 ||
			(len(p.colBasis) == red.NumCol && len(p.rowBasis) == red.NumRow),
	}
	for k, j := range p.colMap {
		r.x[j] = reduced.ColValue[k]
		if r.withBasis {
			r.colStatus[j] = p.colBasis[k]
		}
	}
	for k, i := range p.rowMap {
		if len(reduced.RowDual) > 0 {
			r.y[i] = reduced.RowDual[k]
		}
		if r.withBasis {
			r.rowStatus[i] = p.rowBasis[k]
		}
	}

	for n := len(p.stack) - 1; n >= 0; n-- {
		p.stack[n].apply(r)
	}

	sol := lp.Solution{
		ColValue: r.x,
		ColDual:  make([]float64, m.NumCol),
		RowValue: m.RowActivity(r.x),
		RowDual:  r.y,
	}
	for j := range sol.ColDual {
		sol.ColDual[j] = r.reducedCost(j)
	}

	p.recovered = lp.Basis{}
	if r.withBasis {
		p.recovered = lp.Basis{Valid: true, ColStatus: r.colStatus, RowStatus: r.rowStatus}
		if !p.recovered.Consistent(m) {
			p.logger.Error("recovered basis is inconsistent",
				slog.Int("num_basic", p.recovered.NumBasic()),
				slog.Int("num_row", m.NumRow),
			)
			p.recovered = lp.Basis{}
			return PostsolveError, lp.Solution{}
		}
	}

	return PostsolveSolutionRecovered, sol
}

// RecoveredBasis returns the basis produced by the last successful
// Postsolve. It is invalid if no reduced basis was supplied.
func (p *Presolver) RecoveredBasis() lp.Basis {
	return p.recovered.Clone()
}
