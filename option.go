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
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/timer"
)

type Option func(*Solver) error

func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		s.logger = logger

		return nil
	}
}

// WithOptions replaces the default options.
func WithOptions(opts config.Options) Option {
	return func(s *Solver) error {
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("invalid options: %w", err)
		}
		s.options = opts

		return nil
	}
}

// WithMethod registers the LP solver used for the given value of the
// solver option (config.SolverSimplex or config.SolverIPM).
func WithMethod(name string, solver LPSolver) Option {
	return func(s *Solver) error {
		if name != config.SolverSimplex && name != config.SolverIPM {
			return fmt.Errorf("unknown solution method %q", name)
		}
		s.methods[name] = solver

		return nil
	}
}

func WithPresolver(p Presolver) Option {
	return func(s *Solver) error {
		s.presolver = p

		return nil
	}
}

func WithModelReader(r ModelReader) Option {
	return func(s *Solver) error {
		s.reader = r

		return nil
	}
}

// WithClock sets the clock runs are timed with.
func WithClock(c *timer.Clock) Option {
	return func(s *Solver) error {
		s.clock = c

		return nil
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Solver) error {
		s.telemetry.tracerProvider = tp

		return nil
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Solver) error {
		s.telemetry.meterProvider = mp

		return nil
	}
}
