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

package lp

import "fmt"

// Status is the outcome class of a call.
type Status int

const (
	StatusError   Status = -1
	StatusOK      Status = 0
	StatusWarning Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "Warning"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Worst combines two call outcomes, Error dominating Warning dominating OK.
func Worst(a, b Status) Status {
	if a == StatusError || b == StatusError {
		return StatusError
	}
	if a == StatusWarning || b == StatusWarning {
		return StatusWarning
	}
	return StatusOK
}

// ModelStatus is the declared state of a model after a solve attempt.
type ModelStatus int

const (
	ModelStatusNotSet ModelStatus = iota
	ModelStatusLoadError
	ModelStatusModelError
	ModelStatusPresolveError
	ModelStatusSolveError
	ModelStatusPostsolveError
	ModelStatusModelEmpty
	ModelStatusOptimal
	ModelStatusPrimalInfeasible
	ModelStatusPrimalUnbounded
	ModelStatusReachedDualObjectiveBound
	ModelStatusReachedTimeLimit
	ModelStatusReachedIterationLimit
)

var modelStatusNames = []string{
	"Not Set",
	"Load error",
	"Model error",
	"Presolve error",
	"Solve error",
	"Postsolve error",
	"Model empty",
	"Optimal",
	"Primal infeasible",
	"Primal unbounded",
	"Reached dual objective value upper bound",
	"Reached time limit",
	"Reached iteration limit",
}

func (s ModelStatus) String() string {
	if s >= 0 && int(s) < len(modelStatusNames) {
		return modelStatusNames[s]
	}
	return fmt.Sprintf("ModelStatus(%d)", int(s))
}

// IsError reports whether the status is one of the *-error statuses.
func (s ModelStatus) IsError() bool {
	switch s {
	case ModelStatusLoadError, ModelStatusModelError, ModelStatusPresolveError,
		ModelStatusSolveError, ModelStatusPostsolveError:
		return true
	}
	return false
}

// CallStatus maps a model status to the outcome class reported to callers.
func (s ModelStatus) CallStatus() Status {
	switch s {
	case ModelStatusModelEmpty, ModelStatusOptimal, ModelStatusPrimalInfeasible,
		ModelStatusPrimalUnbounded, ModelStatusReachedDualObjectiveBound:
		return StatusOK
	case ModelStatusReachedTimeLimit, ModelStatusReachedIterationLimit:
		return StatusWarning
	default:
		return StatusError
	}
}

// BasisStatus represents the basis status of a column or row.
type BasisStatus int

const (
	// BasisStatusLower indicates the variable is at its lower bound.
	BasisStatusLower BasisStatus = iota
	// BasisStatusBasic indicates the variable is basic.
	BasisStatusBasic
	// BasisStatusUpper indicates the variable is at its upper bound.
	BasisStatusUpper
	// BasisStatusZero indicates the variable is free and set to zero.
	BasisStatusZero
	// BasisStatusNonbasic indicates a nonbasic fixed variable.
	BasisStatusNonbasic
)

func (s BasisStatus) String() string {
	switch s {
	case BasisStatusLower:
		return "Lower"
	case BasisStatusBasic:
		return "Basic"
	case BasisStatusUpper:
		return "Upper"
	case BasisStatusZero:
		return "Zero"
	case BasisStatusNonbasic:
		return "Nonbasic"
	default:
		return fmt.Sprintf("BasisStatus(%d)", int(s))
	}
}

// SolutionStatus describes a primal or dual point.
type SolutionStatus int

const (
	SolutionStatusNotSet SolutionStatus = iota
	SolutionStatusNoSolution
	SolutionStatusInfeasible
	SolutionStatusFeasible
)

func (s SolutionStatus) String() string {
	switch s {
	case SolutionStatusNoSolution:
		return "No solution"
	case SolutionStatusInfeasible:
		return "Infeasible point"
	case SolutionStatusFeasible:
		return "Feasible point"
	default:
		return "Not Set"
	}
}
