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

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/costela/lpcore"
	"github.com/costela/lpcore/config"
	"github.com/costela/lpcore/lp"
	"github.com/costela/lpcore/modelio"
)

type flags struct {
	options   string
	telemetry string
	verbose   bool
	basis     bool
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "lpcore",
		Short:         "Solve linear programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.options, "options", "o", "", "options file (YAML)")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log debug output to stderr")

	solveCmd := &cobra.Command{
		Use:   "solve [model file]",
		Short: "Solve a model and print the result as YAML",
		Long: `Solve reads the model from the given file, or from the model_file
option when no file is given, and prints statuses, objective and solution.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, f, args)
		},
	}
	solveCmd.Flags().StringVar(&f.telemetry, "telemetry", "none", `telemetry exporter: "stdout" or "none"`)
	solveCmd.Flags().BoolVar(&f.basis, "basis", false, "include the final basis")

	validateCmd := &cobra.Command{
		Use:   "validate <model file>",
		Short: "Check a model file and print its dimensions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := modelio.FileReader{}.ReadModel(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, %d columns, %d nonzeros\n",
				args[0], m.NumRow, m.NumCol, m.NumNonzero())
			return nil
		},
	}

	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "Print the effective options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := config.Load(f.options)
			if err != nil {
				return err
			}
			out, err := opts.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	root.AddCommand(solveCmd, validateCmd, optionsCmd)
	return root
}

func runSolve(cmd *cobra.Command, f flags, args []string) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts, err := config.Load(f.options)
	if err != nil {
		return err
	}

	shutdown, err := initTelemetry(f.telemetry, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil && err == nil {
			err = serr
		}
	}()

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	solver, err := lpcore.New(lpcore.WithLogger(logger), lpcore.WithOptions(opts))
	if err != nil {
		return err
	}
	if len(args) > 0 {
		if _, err := solver.ReadModel(args[0]); err != nil {
			return err
		}
	}

	status, err := solver.Run(ctx)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(newResult(solver, status, f.basis))
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

type result struct {
	Status      string   `yaml:"status"`
	ModelStatus string   `yaml:"model_status"`
	Objective   *float64 `yaml:"objective,omitempty"`
	Iterations  struct {
		Simplex   int `yaml:"simplex"`
		IPM       int `yaml:"ipm,omitempty"`
		Crossover int `yaml:"crossover,omitempty"`
	} `yaml:"iterations"`
	Columns []variable `yaml:"columns,omitempty"`
	Rows    []variable `yaml:"rows,omitempty"`
}

type variable struct {
	Name   string  `yaml:"name"`
	Value  float64 `yaml:"value"`
	Dual   float64 `yaml:"dual"`
	Status string  `yaml:"status,omitempty"`
}

func newResult(s *lpcore.Solver, status lp.Status, withBasis bool) result {
	r := result{
		Status:      status.String(),
		ModelStatus: s.ModelStatus(false).String(),
	}
	info := s.Info()
	r.Iterations.Simplex = info.Iterations.Simplex
	r.Iterations.IPM = info.Iterations.IPM
	r.Iterations.Crossover = info.Iterations.Crossover

	sol := s.Solution()
	if sol.IsEmpty() {
		return r
	}
	r.Objective = &info.ObjectiveValue

	m := s.Model()
	basis := s.Basis()
	withBasis = withBasis && basis.Valid
	for j, v := range sol.ColValue {
		col := variable{Name: name(m.ColNames, "c", j), Value: v, Dual: sol.ColDual[j]}
		if withBasis {
			col.Status = basis.ColStatus[j].String()
		}
		r.Columns = append(r.Columns, col)
	}
	for i, v := range sol.RowValue {
		row := variable{Name: name(m.RowNames, "r", i), Value: v, Dual: sol.RowDual[i]}
		if withBasis {
			row.Status = basis.RowStatus[i].String()
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}

func name(names []string, prefix string, k int) string {
	if k < len(names) && names[k] != "" {
		return names[k]
	}
	return fmt.Sprintf("%s%d", prefix, k)
}
