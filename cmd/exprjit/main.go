// Command exprjit is a single-shot expression evaluator: it takes one
// expression, binds the variables given on the command line, evaluates or
// JIT-compiles it once, prints the result, and exits. It is deliberately
// not the interactive REPL spec.md's non-goals exclude.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/exprjit/exprjit"
)

var (
	exprFlag    string
	varFlags    []string
	argSepFlag  string
	decSepFlag  string
	compileFlag bool
	verboseFlag bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exprjit",
		Short: "Evaluate or JIT-compile a single scalar-float expression",
		RunE:  runRoot,
	}
	cmd.Flags().StringVar(&exprFlag, "expr", "", "expression to evaluate (required)")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "variable binding name=value, repeatable")
	cmd.Flags().StringVar(&argSepFlag, "arg-sep", "", "override the argument separator rune")
	cmd.Flags().StringVar(&decSepFlag, "dec-sep", "", "override the decimal separator rune")
	cmd.Flags().BoolVar(&compileFlag, "compile", false, "JIT-compile instead of running the portable VM")
	cmd.Flags().BoolVar(&verboseFlag, "verbose", false, "emit debug-level parse/compile tracing")
	_ = cmd.MarkFlagRequired("expr")
	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	p := exprjit.New()
	if verboseFlag {
		logger := logrus.New()
		logger.SetLevel(logrus.DebugLevel)
		p.SetLogger(logger)
	}

	for _, kv := range varFlags {
		name, val, err := parseVarFlag(kv)
		if err != nil {
			return err
		}
		cell := val
		if err := p.DefineVar(name, &cell); err != nil {
			return fmt.Errorf("--var %s: %w", kv, err)
		}
	}

	if argSepFlag != "" {
		if err := p.SetArgSep([]rune(argSepFlag)[0]); err != nil {
			return err
		}
	}
	if decSepFlag != "" {
		if err := p.SetDecSep([]rune(decSepFlag)[0]); err != nil {
			return err
		}
	}

	p.SetExpr(exprFlag)

	if compileFlag {
		fn, err := p.Compile(0)
		if err != nil {
			return err
		}
		defer fn.Release()
		fmt.Fprintln(cmd.OutOrStdout(), fn.Call())
		return nil
	}

	result, err := p.Eval()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

func parseVarFlag(kv string) (string, float64, error) {
	name, rest, ok := strings.Cut(kv, "=")
	if !ok {
		return "", 0, fmt.Errorf("malformed --var %q, want name=value", kv)
	}
	val, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed --var %q: %w", kv, err)
	}
	return name, val, nil
}
