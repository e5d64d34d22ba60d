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
	"fmt"

	"github.com/costela/lpcore/lp"
)

// retention lists the results kept alongside a model status.
type retention struct {
	solution bool
	basis    bool
	info     bool
}

// retained returns what survives a run ending with status. A kept basis
// additionally has to be valid.
func retained(status lp.ModelStatus) retention {
	switch status {
	case lp.ModelStatusOptimal:
		return retention{solution: true, basis: true, info: true}
	case lp.ModelStatusPrimalInfeasible:
		return retention{basis: true, info: true}
	case lp.ModelStatusPrimalUnbounded:
		return retention{basis: true}
	}
	return retention{}
}

// reconcile clears the results that the model status does not vouch for and
// checks what remains against the model. Every Run passes through it once.
func (s *Solver) reconcile() {
	keep := retained(s.scaledStatus)
	if !keep.solution {
		s.solution.Clear()
	}
	if !keep.basis || !s.basis.Valid {
		s.clearBasis()
	}
	if !keep.info {
		s.info.Clear()
	}

	s.checkResults()
}

// checkResults panics if the visible results contradict the model or each
// other.
func (s *Solver) checkResults() {
	if s.scaledStatus != s.unscaledStatus &&
		(s.scaledStatus != lp.ModelStatusOptimal || s.unscaledStatus != lp.ModelStatusNotSet) {
		panic(fmt.Sprintf("lpcore: scaled status %q disagrees with unscaled status %q", s.scaledStatus, s.unscaledStatus))
	}

	if s.model == nil {
		if s.basis.Valid || !s.solution.IsEmpty() {
			panic("lpcore: results without a model")
		}
		return
	}
	if s.basis.Valid && !s.basis.Consistent(s.model) {
		panic(fmt.Sprintf("lpcore: basis with %d column and %d row statuses and %d basic is inconsistent with a %dx%d model",
			len(s.basis.ColStatus), len(s.basis.RowStatus), s.basis.NumBasic(), s.model.NumRow, s.model.NumCol))
	}
	if !s.solution.IsEmpty() && !s.solution.Consistent(s.model) {
		panic(fmt.Sprintf("lpcore: solution with %d column and %d row values is inconsistent with a %dx%d model",
			len(s.solution.ColValue), len(s.solution.RowValue), s.model.NumRow, s.model.NumCol))
	}
}
