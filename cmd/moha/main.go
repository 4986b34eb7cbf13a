// Command moha compiles and runs moha source files through a bytecode
// compiler and stack-based virtual machine, or starts an interactive REPL.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mohalang/moha/compiler"
	"github.com/mohalang/moha/lexer"
	"github.com/mohalang/moha/loader"
	"github.com/mohalang/moha/parser"
	"github.com/mohalang/moha/repl"
	"github.com/mohalang/moha/sys"
	"github.com/mohalang/moha/vm"
)

const version = "0.1.0"

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `moha v%s

USAGE:
    %s [run] <file>     Execute a moha script file
    %s repl             Start the interactive REPL
    %s [OPTIONS]

OPTIONS:
    -e, --eval <code>      Evaluate a moha expression and print the result
    -d, --debug            Print the last popped value after running a file
    -v, --version          Show version information
    -h, --help             Show this help message

EXAMPLES:
    %s run script.mo
    %s script.mo
    %s repl
    %s -e "1 + 2;"

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	evalFlag := flag.String("eval", "", "Evaluate a moha expression and print the result")
	debugFlag := flag.Bool("debug", false, "Print the last popped value after running a file")
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.StringVar(evalFlag, "e", "", "Evaluate a moha expression and print the result")
	flag.BoolVar(debugFlag, "d", false, "Print the last popped value after running a file")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("moha v%s\n", version)
		return
	}

	if *evalFlag != "" {
		evaluateExpression(*evalFlag)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		repl.Start(repl.Options{Debug: *debugFlag})
		return
	}

	cmd := args[0]
	switch cmd {
	case "repl":
		repl.Start(repl.Options{Debug: *debugFlag})
	case "run":
		if len(args) < 2 {
			printUsage()
			os.Exit(1)
		}
		executeFile(args[1], *debugFlag)
	default:
		executeFile(cmd, *debugFlag)
	}
}

func executeFile(filename string, debug bool) {
	absPath, err := filepath.Abs(filepath.Clean(filename))
	if err != nil {
		fmt.Printf("Error resolving path: %s\n", err)
		os.Exit(1)
	}

	//nolint:gosec // filename is a path the user passed on the command line, not untrusted input
	content, err := os.ReadFile(absPath)
	if err != nil {
		fmt.Printf("Error reading file: %s\n", err)
		os.Exit(1)
	}

	env, err := sys.New(filepath.Dir(absPath))
	if err != nil {
		fmt.Printf("Error resolving environment: %s\n", err)
		os.Exit(1)
	}

	p := parser.New(lexer.New(string(content)))
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		printParserErrors(p.Errors())
		os.Exit(1)
	}

	comp := compiler.New()
	if err := comp.Compile(program); err != nil {
		fmt.Printf("Compilation error: %s\n", err)
		os.Exit(1)
	}

	ld := loader.New(env)
	machine := vm.New(comp.Bytecode(), ld.ImporterFor(absPath))
	if err := machine.Run(); err != nil {
		fmt.Printf("VM error: %s\n", err)
		os.Exit(1)
	}

	if debug {
		fmt.Println(machine.LastPoppedStackItem().String())
	}
}

func evaluateExpression(expr string) {
	p := parser.New(lexer.New(expr))
	program := p.ParseProgram()
	if len(p.Errors()) != 0 {
		printParserErrors(p.Errors())
		os.Exit(1)
	}

	comp := compiler.New()
	if err := comp.Compile(program); err != nil {
		fmt.Printf("Compilation error: %s\n", err)
		os.Exit(1)
	}

	env, err := sys.New("")
	if err != nil {
		fmt.Printf("Error resolving environment: %s\n", err)
		os.Exit(1)
	}
	ld := loader.New(env)

	machine := vm.New(comp.Bytecode(), ld.ImporterFor(filepath.Join(env.Cwd, "<eval>")))
	if err := machine.Run(); err != nil {
		fmt.Printf("VM error: %s\n", err)
		os.Exit(1)
	}

	fmt.Println(machine.LastPoppedStackItem().String())
}

func printParserErrors(errors []string) {
	_, _ = fmt.Fprintln(os.Stderr, "Parser errors:")
	for _, msg := range errors {
		_, _ = fmt.Fprintln(os.Stderr, "\t"+msg)
	}
}
