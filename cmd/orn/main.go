package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/Blopaa/Orn-sub000/pkg/cli"
	"github.com/Blopaa/Orn-sub000/pkg/codegen"
	"github.com/Blopaa/Orn-sub000/pkg/config"
	"github.com/Blopaa/Orn-sub000/pkg/ir"
	"github.com/Blopaa/Orn-sub000/pkg/util"
)

func main() {
	app := cli.NewApp("orn")
	app.Synopsis = "[options] <input.ir> ..."
	app.Description = "Optimizes a three-address IR program and lowers it to x86-64 assembly for the Linux System V ABI."
	app.Repository = "<https://github.com/Blopaa/Orn-sub000>"

	var (
		outFile string
		target  string
		dumpIR  bool
		noWarn  bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "out.s", "Place the generated assembly into <file>.", "file")
	fs.String(&target, "target", "t", "", "Set the target ABI (default: host).", "target")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the optimized intermediate representation and exit.")
	fs.Bool(&noWarn, "w", "", false, "Suppress all warnings.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if noWarn {
			cfg.SetAllWarnings(false)
		}
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.Error("%v", err)
		}
		if len(inputFiles) == 0 {
			util.Error("no input files specified")
		}

		prog := readProgram(inputFiles)
		ir.Optimize(prog, cfg)

		if dumpIR {
			fmt.Print(prog)
			return nil
		}

		backend, err := codegen.NewBackend(cfg.BackendName)
		if err != nil {
			util.Error("%v", err)
		}
		asm, err := backend.Generate(prog, cfg)
		if err != nil {
			util.Error("%v", err)
		}
		if err := util.WriteFile(outFile, asm.Bytes()); err != nil {
			util.Error("%v", err)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// readProgram concatenates the input files in argument order and parses the
// result as one program.
func readProgram(paths []string) *ir.Program {
	var src []byte
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			util.Error("could not read '%s': %v", path, err)
		}
		src = append(src, data...)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			src = append(src, '\n')
		}
	}
	prog, err := ir.ParseText(string(src))
	if err != nil {
		util.Error("%v", err)
	}
	return prog
}
