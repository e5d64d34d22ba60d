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
	"log/slog"
	"math"
	"time"

	"github.com/costela/lpcore/lp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func modelAttrs(m *lp.Model) slog.Attr {
	return slog.Group("model",
		slog.String("name", m.Name),
		slog.Int("num_col", m.NumCol),
		slog.Int("num_row", m.NumRow),
		slog.Int("num_nz", m.NumNonzero()),
	)
}

// phaseTimes are the durations of the phases of one run. A phase that did
// not take place stays negative.
type phaseTimes struct {
	presolve        time.Duration
	solvePresolved  time.Duration
	postsolve       time.Duration
	solveOriginal   time.Duration
	postsolveIters  int
	hasPostsolveRun bool
}

func newPhaseTimes() phaseTimes {
	return phaseTimes{presolve: -1, solvePresolved: -1, postsolve: -1, solveOriginal: -1}
}

// report logs the phase times of a run lasting total, with each phase's
// share. A sum of phase times more than 10% off the total is logged as a
// warning.
func (p phaseTimes) report(logger *slog.Logger, total time.Duration) {
	attrs := []any{slog.Duration("total", total)}
	if p.hasPostsolveRun {
		attrs = append(attrs, slog.Int("postsolve_iterations", p.postsolveIters))
	}

	var sum time.Duration
	for _, phase := range []struct {
		name string
		d    time.Duration
	}{
		{"presolve", p.presolve},
		{"solve_presolved", p.solvePresolved},
		{"postsolve", p.postsolve},
		{"solve_original", p.solveOriginal},
	} {
		if phase.d < 0 {
			continue
		}
		sum += phase.d
		attr := slog.Group(phase.name, slog.Duration("time", phase.d))
		if total > 0 {
			attr = slog.Group(phase.name,
				slog.Duration("time", phase.d),
				slog.Int("percent", int(100*phase.d/total)),
			)
		}
		attrs = append(attrs, attr)
	}
	logger.Info("run timing", attrs...)

	if total <= 0 {
		return
	}
	if diff := math.Abs(float64(sum-total)) / float64(total); diff > 0.1 {
		logger.Warn("phase times do not add up to the run time",
			slog.Duration("total", total),
			slog.Duration("sum", sum),
			slog.Float64("relative_difference", diff),
		)
	}
}
