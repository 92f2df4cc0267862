// Command sigcorec is the CLI entry point for the pipeline: a "compile"
// subcommand driving pipeline.Compile + pipeline.Emit against a reference
// backend, and a "serve" subcommand standing up the long-running compile
// server. Flag-based subcommand dispatch, fatih/color status output,
// version info set by ldflags.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/sunholo/sigcore/internal/backend"
	"github.com/sunholo/sigcore/internal/config"
	"github.com/sunholo/sigcore/internal/diag"
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/pipeline"
	"github.com/sunholo/sigcore/internal/server"
	"github.com/sunholo/sigcore/internal/types"
)

var (
	// Version info, set by ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		backendFlag = flag.String("backend", "native", "Backend target: native, wasm, wavecore")
		configFlag  = flag.String("config", "", "Path to a YAML config file")
		workersFlag = flag.Int("workers", 2, "Compile-server worker concurrency (serve subcommand only)")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("sigcorec %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		return
	}

	if flag.NArg() == 0 {
		printHelp()
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: loading config: %v\n", red("error"), err)
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "compile":
		runCompile(cfg, *backendFlag)
	case "serve":
		runServe(cfg, *workersFlag)
	case "repl":
		runREPL(cfg)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("error"), flag.Arg(0))
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(bold("sigcorec") + " - reactive signal-processing compiler core")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sigcorec compile [-backend native|wasm|wavecore] [-config path]")
	fmt.Println("  sigcorec serve   [-workers N] [-config path]")
	fmt.Println("  sigcorec repl    [-config path]")
}

// runCompile demonstrates the pipeline end-to-end against a synthesized
// demo program (λx. Add(x, 2)) applied to a Float32 argument, since this
// entry point has no source-text parser of its own.
func runCompile(cfg *config.Config, backendName string) {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sink := diag.NewZapSink(logger, diag.VerbosityInfo)

	r := graph.NewRegion(nil)
	x := r.NewArgument(graph.Pos{})
	two := r.NewConstant(graph.Pos{}, big.NewRat(2, 1))
	add := r.NewNative(graph.Pos{}, "Add", x, two)
	form := r.NewLambda(graph.Pos{}, nil, add, nil)
	fnSet := r.NewFunctionSet(graph.Pos{}, "addTwo", []graph.Ref{form}, nil)
	argCall := r.NewArgument(graph.Pos{})
	eval := r.NewEvaluate(graph.Pos{}, "addTwo", fnSet, argCall)
	r.Seal()

	res, err := pipeline.Compile(pipeline.Request{
		Root:    eval,
		ArgType: types.Float32(),
		Sink:    sink,
		Config:  cfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("compile failed"), err)
		os.Exit(1)
	}

	b, err := pickBackend(backendName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
		os.Exit(1)
	}
	artifact, meta, err := pipeline.EmitInstance(b, res, cfg, "entry")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("emit failed"), err)
		os.Exit(1)
	}

	fmt.Printf("%s compiled via %s backend, %d-byte instance, %d state slot(s), %d symbol(s)\n",
		green("OK"), yellow(b.Name()), meta.Size, res.Symbols.StateSlotCount, len(res.Symbols.Symbols))
	fmt.Println(string(artifact.Bytes()))
}

func pickBackend(name string) (backend.Backend, error) {
	switch name {
	case "native":
		return backend.NewNativeBackend(), nil
	case "wasm":
		return backend.NewWasmBackend(), nil
	case "wavecore":
		return backend.NewWaveCoreBackend(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// runServe stands up the long-running compile server and blocks until SIGINT/
// SIGTERM, then shuts down gracefully (letting any in-flight job finish).
func runServe(cfg *config.Config, workers int) {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	s := server.New(int64(workers), logger)
	ctx, cancel := context.WithCancel(context.Background())
	s.Run(ctx, workers)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("%s compile server listening with %d worker(s)\n", green("OK"), workers)
	<-sigs
	fmt.Println(yellow("shutting down, waiting for in-flight jobs..."))
	cancel()
	s.Shutdown()
}

// runREPL offers an interactive line-editing session (via peterh/liner)
// for submitting ad hoc
// compile requests against a running in-process server, without a
// source-text parser: each line is parsed as a big.Rat argument value fed
// through the same demo program runCompile uses.
func runREPL(cfg *config.Config) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println(bold("sigcorec repl") + " - enter a numeric argument, or 'quit'")
	for {
		input, err := line.Prompt("sigcore> ")
		if err != nil {
			return
		}
		line.AppendHistory(input)
		if input == "quit" || input == "exit" {
			return
		}
		val, ok := new(big.Rat).SetString(input)
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: not a number: %q\n", red("error"), input)
			continue
		}
		evalREPLExpr(cfg, val)
	}
}

func evalREPLExpr(cfg *config.Config, arg *big.Rat) {
	r := graph.NewRegion(nil)
	x := r.NewArgument(graph.Pos{})
	two := r.NewConstant(graph.Pos{}, big.NewRat(2, 1))
	add := r.NewNative(graph.Pos{}, "Add", x, two)
	form := r.NewLambda(graph.Pos{}, nil, add, nil)
	fnSet := r.NewFunctionSet(graph.Pos{}, "addTwo", []graph.Ref{form}, nil)
	argCall := r.NewArgument(graph.Pos{})
	eval := r.NewEvaluate(graph.Pos{}, "addTwo", fnSet, argCall)
	r.Seal()

	start := time.Now()
	res, err := pipeline.Compile(pipeline.Request{Root: eval, ArgType: types.Invariant(arg), Config: cfg})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
		return
	}
	fmt.Printf("%s result type %v (%s)\n", green("=>"), res.TypedRoot.Node().Result, time.Since(start))
}
