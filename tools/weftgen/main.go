// Command weftgen is a source-to-source preprocessor. It reads a Go
// source file (conventionally named *.weftgo), rewrites every function
// whose doc comment carries a //weft:instrument directive so that the
// function runs inside a span capturing its arguments, and writes the
// resulting Go file.
//
// Directive arguments, all optional and in any order:
//
//	//weft:instrument level=debug target=custom name=frobnicate
//
// level accepts trace, debug, info, warn, error (case-insensitive) or
// the numbers 1 through 5. Defaults: level=info, target=the package
// name, name=the function name. A repeated argument or a level outside
// that set is an error; the build fails rather than silently
// defaulting.
//
// Functions whose single result is func() or func() error are treated
// as producers of deferred computations: instead of entering the span
// synchronously, every returned computation is wrapped so the span is
// entered around each invocation.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

func main() {
	output := flag.String("o", "", "output file (default: input with .weftgo replaced by .go, or stdout for stdin input)")
	flag.Parse()

	if err := run(flag.Arg(0), *output); err != nil {
		fmt.Fprintf(os.Stderr, "weftgen: %+v\n", err)
		os.Exit(1)
	}
}

func run(input string, output string) error {
	var src []byte
	var err error
	filename := input
	switch input {
	case "", "-":
		filename = "stdin.go"
		src, err = io.ReadAll(os.Stdin)
	default:
		src, err = os.ReadFile(input)
	}
	if err != nil {
		return err
	}

	generated, err := Rewrite(filename, src)
	if err != nil {
		return err
	}

	header := "// This file is generated, DO NOT EDIT.  It comes from the corresponding .weftgo file\n//\n"
	out := append([]byte(header), generated...)

	if output == "" && (input == "" || input == "-") {
		_, err = os.Stdout.Write(out)
		return err
	}
	if output == "" {
		output = strings.TrimSuffix(input, ".weftgo") + ".go"
		if output == input {
			output = input + ".gen.go"
		}
	}
	return os.WriteFile(output, out, 0o644)
}
