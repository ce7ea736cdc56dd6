package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/arc"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/ast"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/eval"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/lexer"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/lower"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/parser"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/resolver"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/sea"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations
var (
	dParse bool
	dLower bool
	dARC   bool
)

var (
	outputPath string
	runProgram bool
	verbose    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept compiler-style single-dash flags alongside pflag's double dash
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the flags accepted in single-dash form
var debugFlagNames = []string{"dparse", "dlower", "darc"}

// normalizeFlags converts single-dash debug flags like -dparse to --dparse
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ahoy-sea [file]",
		Short: "ahoy-sea translates the sea dialect to plain C",
		Long: `ahoy-sea compiles the extended C dialect used by the ahoy
toolchain into a self-contained C translation unit. Statement
expressions, compound literal stores, and reference counting
are lowered to explicit statements; the output compiles with
any C11 compiler.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			filename := args[0]

			if dParse {
				return doParse(filename, out, errOut)
			}
			if dLower {
				return doLower(filename, out, errOut, false)
			}
			if dARC {
				return doLower(filename, out, errOut, true)
			}
			if runProgram {
				return doRun(filename, out, errOut)
			}
			return doCompile(filename, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dParse, "dparse", false, "Dump after parsing")
	rootCmd.Flags().BoolVar(&dLower, "dlower", false, "Dump lowered IR before refcount insertion")
	rootCmd.Flags().BoolVar(&dARC, "darc", false, "Dump lowered IR after refcount insertion")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: input with .c extension)")
	rootCmd.Flags().BoolVar(&runProgram, "run", false, "Interpret the program instead of emitting C")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", env.Bool("AHOY_VERBOSE"), "Report each pipeline stage")

	return rootCmd
}

// parseFile reads and parses a source file
func parseFile(filename string, errOut io.Writer) (*ast.Program, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}

	l := lexer.New(string(content))
	p := parser.New(l)
	program, diagErr := p.ParseProgram()
	if diagErr != nil {
		fmt.Fprintf(errOut, "%s: %s\n", filename, diagErr)
		return nil, errors.New("parsing failed")
	}
	return program, nil
}

// buildProgram runs the pipeline through lowering; withARC additionally
// inserts refcount statements.
func buildProgram(filename string, errOut io.Writer, withARC bool) (*sea.Program, error) {
	program, err := parseFile(filename, errOut)
	if err != nil {
		return nil, err
	}

	unit, diagErr := resolver.Resolve(program)
	if diagErr != nil {
		fmt.Fprintf(errOut, "%s: %s\n", filename, diagErr)
		return nil, errors.New("resolution failed")
	}

	lowered, diagErr := lower.Lower(unit)
	if diagErr != nil {
		fmt.Fprintf(errOut, "%s: %s\n", filename, diagErr)
		return nil, errors.New("lowering failed")
	}

	if withARC {
		if diagErr := arc.Instrument(lowered); diagErr != nil {
			fmt.Fprintf(errOut, "%s: %s\n", filename, diagErr)
			return nil, errors.New("refcount insertion failed")
		}
	}
	return lowered, nil
}

// doParse parses the file and writes the AST to a .parsed file
func doParse(filename string, out, errOut io.Writer) error {
	program, err := parseFile(filename, errOut)
	if err != nil {
		return err
	}

	outputFilename := replaceExt(filename, ".parsed")
	outFile, err := os.Create(outputFilename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", outputFilename)
	}
	defer outFile.Close()

	printer := ast.NewPrinter(outFile)
	printer.PrintProgram(program)

	printer = ast.NewPrinter(out)
	printer.PrintProgram(program)
	return nil
}

// doLower dumps the lowered translation unit without writing the final
// output file.
func doLower(filename string, out, errOut io.Writer, withARC bool) error {
	lowered, err := buildProgram(filename, errOut, withARC)
	if err != nil {
		return err
	}

	ext := ".lower.c"
	if withARC {
		ext = ".arc.c"
	}
	outputFilename := replaceExt(filename, ext)
	outFile, err := os.Create(outputFilename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", outputFilename)
	}
	defer outFile.Close()

	printer := sea.NewPrinter(outFile)
	printer.PrintProgram(lowered)

	printer = sea.NewPrinter(out)
	printer.PrintProgram(lowered)
	return nil
}

// doCompile runs the full pipeline and writes the C output file
func doCompile(filename string, out, errOut io.Writer) error {
	if verbose {
		fmt.Fprintf(errOut, "ahoy-sea: compiling %s\n", filename)
	}
	lowered, err := buildProgram(filename, errOut, true)
	if err != nil {
		return err
	}

	outputFilename := outputPath
	if outputFilename == "" {
		outputFilename = replaceExt(filename, ".c")
	}
	outFile, err := os.Create(outputFilename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", outputFilename)
	}
	defer outFile.Close()

	printer := sea.NewPrinter(outFile)
	printer.PrintProgram(lowered)
	if verbose {
		fmt.Fprintf(errOut, "ahoy-sea: wrote %s\n", outputFilename)
	}
	return nil
}

// doRun interprets the program and forwards its output and exit status
func doRun(filename string, out, errOut io.Writer) error {
	lowered, err := buildProgram(filename, errOut, true)
	if err != nil {
		return err
	}

	machine := eval.New(lowered, out)
	status, err := machine.Run()
	if err != nil {
		return errors.Wrap(err, "runtime error")
	}
	if verbose {
		fmt.Fprintf(errOut, "ahoy-sea: exit status %d\n", status)
	}
	if status != 0 {
		return errors.Errorf("exit status %d", status)
	}
	return nil
}

// replaceExt swaps the .sea extension for ext, or appends ext for other
// input names.
func replaceExt(filename, ext string) string {
	if strings.HasSuffix(filename, ".sea") {
		return filename[:len(filename)-len(".sea")] + ext
	}
	return filename + ext
}
