// Command proctree loads a procedure definition and either runs it to
// completion against a console UserInterface or lints it (Setup only, no
// ticking).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	procerrors "github.com/procbt/engine/errors"
	"github.com/procbt/engine/instructions"
	"github.com/procbt/engine/procedure"
	"github.com/procbt/engine/registry"
	"github.com/procbt/engine/runner"
	"github.com/procbt/engine/ui"
)

var (
	fieldPath string
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "proctree",
		Short: "Load and execute behavior-tree procedure definitions",
	}

	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Load a procedure definition and execute it to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().StringVarP(&fieldPath, "field", "f", "", "CUE field path to decode (ignored for .yaml/.yml files)")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every instruction status transition")

	lintCmd := &cobra.Command{
		Use:   "lint <file>",
		Short: "Load and set up a procedure definition without ticking it",
		Args:  cobra.ExactArgs(1),
		RunE:  runLint,
	}
	lintCmd.Flags().StringVarP(&fieldPath, "field", "f", "", "CUE field path to decode (ignored for .yaml/.yml files)")

	rootCmd.AddCommand(runCmd, lintCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func baseRegistry() *registry.Registry {
	reg := registry.New()
	instructions.RegisterAll(reg)
	return reg
}

func loadProcedure(file string) (*procedure.Procedure, error) {
	reg := baseRegistry()
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".yaml", ".yml":
		return procedure.LoadYAMLFile(file, reg)
	case ".cue":
		return procedure.LoadCUE(file, fieldPath, reg)
	default:
		return nil, fmt.Errorf("proctree: unrecognized file extension %q (want .cue, .yaml or .yml)", ext)
	}
}

func runLint(cmd *cobra.Command, args []string) error {
	proc, err := loadProcedure(args[0])
	if err != nil {
		return err
	}
	if err := proc.Setup(); err != nil {
		if code := procerrors.Code(err); code != procerrors.ErrUnknown {
			return fmt.Errorf("proctree: %s: %w", code, err)
		}
		return err
	}
	defer proc.Teardown()
	fmt.Printf("proctree: %q is valid (%d top-level instruction(s))\n", proc.Name, len(proc.Roots()))
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	proc, err := loadProcedure(args[0])
	if err != nil {
		return err
	}

	answers := ui.NewStdinAnswers(os.Stdin, os.Stdout)
	var logger ui.Logger
	if verbose {
		l := logrus.New()
		l.SetLevel(logrus.DebugLevel)
		logger = ui.NewLogrusLogger(l)
	}
	iface := ui.NewConsoleUI(logger, answers)

	if err := proc.Setup(); err != nil {
		return err
	}
	defer proc.Teardown()

	r := runner.New(iface)
	if err := r.SetProcedure(proc); err != nil {
		return err
	}

	status := r.ExecuteProcedure()
	fmt.Printf("proctree: %q finished: %s\n", proc.Name, status)
	if status.Terminal() && status.String() == "Failure" {
		os.Exit(1)
	}
	return nil
}
