package main

import (
	stdio "io"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"risa/risa"
)

var historyFile = filepath.Join(os.TempDir(), ".risa_history")

func main() {
	app := cli.NewApp()
	app.Name = "risa"
	app.Usage = "compile and run Risa scripts"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a risa.toml configuration file",
		},
	}
	app.Commands = []cli.Command{
		runCommand,
		replCommand,
		disCommand,
		buildCommand,
		loadCommand,
	}
	app.Action = func(ctx *cli.Context) error {
		return cli.ShowAppHelp(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(risa.ExitBadInvocation))
	}
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "compile and execute a script",
	ArgsUsage: "<path>",
	Action:    runAction,
}

func runAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("run: expected exactly one script path", int(risa.ExitBadInvocation))
	}

	path := ctx.Args().Get(0)
	source, err := os.ReadFile(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("run: %v", err), int(risa.ExitUnreadableFile))
	}

	cfg, err := loadConfigOrDefault(ctx)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("run: %v", err), int(risa.ExitBadInvocation))
	}

	rio := risa.DefaultIO()
	vm := risa.NewVM(&rio, cfg)

	if _, err := vm.Run(string(source), false); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.NewExitError("", int(risa.ExitCompileOrRunErr))
	}
	return nil
}

var replCommand = cli.Command{
	Name:   "repl",
	Usage:  "start an interactive, line-edited REPL",
	Action: replAction,
}

func replAction(ctx *cli.Context) error {
	cfg, err := loadConfigOrDefault(ctx)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("repl: %v", err), int(risa.ExitBadInvocation))
	}

	rio := risa.DefaultIO()
	vm := risa.NewVM(&rio, cfg)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("risa repl — Ctrl-D to exit")
	for {
		input, err := line.Prompt("risa> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, stdio.EOF) {
				break
			}
			fmt.Fprintln(os.Stderr, err)
			break
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		result, err := vm.Run(input, true)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if !result.IsNull() {
			fmt.Println(result.String())
		}
	}
	return nil
}

var disCommand = cli.Command{
	Name:      "dis",
	Usage:     "disassemble a script or a persisted cluster",
	ArgsUsage: "<path>",
	Action:    disAction,
}

func disAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("dis: expected exactly one path", int(risa.ExitBadInvocation))
	}

	path := ctx.Args().Get(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("dis: %v", err), int(risa.ExitUnreadableFile))
	}

	cfg := risa.DefaultConfig()
	rio := risa.DefaultIO()
	vm := risa.NewVM(&rio, cfg)

	fn, err := disassembleTarget(vm, path, data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.NewExitError("", int(risa.ExitCompileOrRunErr))
	}

	fmt.Print(risa.Disassemble(fn))
	return nil
}

// disassembleTarget treats a ".risac" suffix as a persisted cluster and
// everything else as source to compile, matching build's counterpart.
func disassembleTarget(vm *risa.VM, path string, data []byte) (*risa.FunctionData, error) {
	if strings.HasSuffix(path, ".risac") {
		return risa.Deserialize(vm, data)
	}
	dense, err := vm.Compile(string(data), false)
	if err != nil {
		return nil, err
	}
	return dense.AsFunction(), nil
}

var buildCommand = cli.Command{
	Name:      "build",
	Usage:     "compile a script to a serialized cluster",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "o",
			Usage: "output cluster path (defaults to <path>c)",
		},
	},
	Action: buildAction,
}

func buildAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("build: expected exactly one script path", int(risa.ExitBadInvocation))
	}

	path := ctx.Args().Get(0)
	source, err := os.ReadFile(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("build: %v", err), int(risa.ExitUnreadableFile))
	}

	cfg := risa.DefaultConfig()
	rio := risa.DefaultIO()
	vm := risa.NewVM(&rio, cfg)

	dense, err := vm.Compile(string(source), false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.NewExitError("", int(risa.ExitCompileOrRunErr))
	}

	out, err := risa.Serialize(dense.AsFunction())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.NewExitError("", int(risa.ExitCompileOrRunErr))
	}

	outPath := ctx.String("o")
	if outPath == "" {
		outPath = path + "c"
	}
	if err := os.WriteFile(outPath, out, 0o644); err != nil {
		return cli.NewExitError(fmt.Sprintf("build: %v", err), int(risa.ExitUnreadableFile))
	}
	return nil
}

var loadCommand = cli.Command{
	Name:      "load",
	Usage:     "load and execute a persisted cluster",
	ArgsUsage: "<cluster>",
	Action:    loadAction,
}

func loadAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("load: expected exactly one cluster path", int(risa.ExitBadInvocation))
	}

	path := ctx.Args().Get(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("load: %v", err), int(risa.ExitUnreadableFile))
	}

	cfg, err := loadConfigOrDefault(ctx)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("load: %v", err), int(risa.ExitBadInvocation))
	}

	rio := risa.DefaultIO()
	vm := risa.NewVM(&rio, cfg)

	fn, err := risa.Deserialize(vm, data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.NewExitError("", int(risa.ExitCompileOrRunErr))
	}

	callee := &risa.Dense{Kind: risa.DenseFunction, Payload: fn}
	if _, err := vm.Call(callee, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.NewExitError("", int(risa.ExitCompileOrRunErr))
	}
	return nil
}

func loadConfigOrDefault(ctx *cli.Context) (*risa.Config, error) {
	path := ctx.GlobalString("config")
	if path == "" {
		path = "risa.toml"
	}
	return risa.LoadConfig(path)
}
