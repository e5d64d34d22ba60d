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
	"github.com/costela/lpcore/config"
)

// override is a set of option changes applied for the length of one scope.
// Nil fields leave the option alone.
type override struct {
	solver             *string
	simplexStrategy    *string
	minThreads         *int
	maxThreads         *int
	runCrossover       *bool
	dualObjectiveBound *float64
}

// hotStartOverride pins the re-solve after postsolve to a single threaded
// simplex.
func hotStartOverride() override {
	return override{
		solver:          ptr(config.SolverSimplex),
		simplexStrategy: ptr(config.Choose),
		minThreads:      ptr(1),
		maxThreads:      ptr(1),
	}
}

// apply changes opts in place and returns the function restoring the
// previous values. Callers defer the restore.
func (o override) apply(opts *config.Options) (restore func()) {
	saved := *opts
	set(&opts.Solver, o.solver)
	set(&opts.SimplexStrategy, o.simplexStrategy)
	set(&opts.MinThreads, o.minThreads)
	set(&opts.MaxThreads, o.maxThreads)
	set(&opts.RunCrossover, o.runCrossover)
	set(&opts.DualObjectiveValueUpperBound, o.dualObjectiveBound)

	return func() {
		*opts = saved
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func ptr[T any](v T) *T {
	return &v
}
