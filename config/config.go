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

// Package config holds the options controlling a solve, with YAML loading,
// environment overrides and validation.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Values accepted by the string valued options.
const (
	Off    = "off"
	On     = "on"
	Choose = "choose"

	SolverSimplex = "simplex"
	SolverIPM     = "ipm"

	StrategyPrimal = "primal"
)

var optionsValidate *validator.Validate

func init() {
	optionsValidate = validator.New()
}

// Options controls the solve pipeline and the built-in solvers. The YAML
// keys follow the option names of the HiGHS solver.
type Options struct {
	Presolve     string `yaml:"presolve" validate:"oneof=off choose on"`
	Solver       string `yaml:"solver" validate:"oneof=simplex ipm choose"`
	RunCrossover bool   `yaml:"run_crossover"`

	// TimeLimit is in seconds; +Inf disables it.
	TimeLimit             float64 `yaml:"time_limit" validate:"gt=0"`
	SimplexIterationLimit int     `yaml:"simplex_iteration_limit" validate:"gte=0"`
	IPMIterationLimit     int     `yaml:"ipm_iteration_limit" validate:"gte=0"`

	MinThreads int `yaml:"min_threads" validate:"gte=1"`
	MaxThreads int `yaml:"max_threads" validate:"gte=1,gtefield=MinThreads"`

	SimplexStrategy string `yaml:"simplex_strategy" validate:"oneof=choose primal"`
	SimplexScale    bool   `yaml:"simplex_scale"`

	DualObjectiveValueUpperBound float64 `yaml:"dual_objective_value_upper_bound"`

	PrimalFeasibilityTolerance float64 `yaml:"primal_feasibility_tolerance" validate:"gt=0,lt=1"`
	DualFeasibilityTolerance   float64 `yaml:"dual_feasibility_tolerance" validate:"gt=0,lt=1"`
	IPMOptimalityTolerance     float64 `yaml:"ipm_optimality_tolerance" validate:"gt=0,lt=1"`

	// ModelFile is read when a solve is requested with no model loaded.
	ModelFile string `yaml:"model_file"`
}

// Default returns the default options.
func Default() Options {
	return Options{
		Presolve:                     Choose,
		Solver:                       Choose,
		RunCrossover:                 true,
		TimeLimit:                    math.Inf(1),
		SimplexIterationLimit:        math.MaxInt32,
		IPMIterationLimit:            200,
		MinThreads:                   1,
		MaxThreads:                   8,
		SimplexStrategy:              Choose,
		SimplexScale:                 true,
		DualObjectiveValueUpperBound: math.Inf(1),
		PrimalFeasibilityTolerance:   1e-7,
		DualFeasibilityTolerance:     1e-7,
		IPMOptimalityTolerance:       1e-8,
	}
}

// Validate checks the options against their constraints.
func (o *Options) Validate() error {
	if math.IsNaN(o.DualObjectiveValueUpperBound) {
		return errors.New("dual_objective_value_upper_bound is NaN")
	}
	return optionsValidate.Struct(o)
}

// TimeLimitDuration converts TimeLimit to a duration; zero means no limit.
func (o *Options) TimeLimitDuration() time.Duration {
	if math.IsInf(o.TimeLimit, 1) || o.TimeLimit*float64(time.Second) >= math.MaxInt64 {
		return 0
	}
	return time.Duration(o.TimeLimit * float64(time.Second))
}

// Load reads options from a YAML file over the defaults, applies
// LPCORE_* environment overrides and validates the result. An empty path
// only applies defaults and environment.
func Load(path string) (Options, error) {
	opts := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("reading options file: %w", err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("parsing options file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(&opts); err != nil {
		return opts, err
	}

	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid options: %w", err)
	}

	return opts, nil
}

func loadFromEnv(opts *Options) error {
	if v := os.Getenv("LPCORE_PRESOLVE"); v != "" {
		opts.Presolve = v
	}
	if v := os.Getenv("LPCORE_SOLVER"); v != "" {
		opts.Solver = v
	}
	if v := os.Getenv("LPCORE_MODEL_FILE"); v != "" {
		opts.ModelFile = v
	}
	if v := os.Getenv("LPCORE_TIME_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LPCORE_TIME_LIMIT: %w", err)
		}
		opts.TimeLimit = f
	}
	if v := os.Getenv("LPCORE_MAX_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LPCORE_MAX_THREADS: %w", err)
		}
		opts.MaxThreads = n
	}
	return nil
}

// Marshal renders the options as YAML.
func (o Options) Marshal() ([]byte, error) {
	return yaml.Marshal(o)
}
