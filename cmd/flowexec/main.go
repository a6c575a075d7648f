package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/flowrt/flow-runtime/config"
	"github.com/flowrt/flow-runtime/driver"
	"github.com/flowrt/flow-runtime/errors"
	"github.com/flowrt/flow-runtime/host"
	"github.com/flowrt/flow-runtime/telemetry"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to an HCL run configuration file")
		funcs       = flag.String("funcs", "", "Comma-separated functions to run (default: all)")
		allocator   = flag.String("allocator", "", "Allocator strategy: heap, fixed-size-test, profiled, leak-checking")
		workQueue   = flag.String("work-queue", "serial", "Work queue kind: serial, concurrent, concurrent:N")
		libs        = flag.String("libs", "", "Comma-separated kernel libraries (.wasm, .so)")
		devices     = flag.String("devices", "", "Comma-separated devices (name or name:kind)")
		name        = flag.String("name", "", "Run name used in traces and error messages")
		trace       = flag.Bool("trace", false, "Export OpenTelemetry spans to stdout")
		noLeakCheck = flag.Bool("no-leak-check", false, "Skip async value leak accounting")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			host.SetLogger(logger)
			defer logger.Sync()
		}
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFile(*configFile, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Flags set on the command line win over the config file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if flag.NArg() > 0 {
		cfg.Input = flag.Arg(0)
	}
	if set["funcs"] {
		cfg.Functions = config.SplitList(*funcs)
	}
	if set["allocator"] {
		cfg.Allocator = *allocator
	}
	if set["work-queue"] {
		cfg.WorkQueue = *workQueue
	}
	if set["libs"] {
		cfg.SharedLibs = config.SplitList(*libs)
	}
	if set["devices"] {
		cfg.Devices = config.SplitList(*devices)
	}
	if set["name"] {
		cfg.Name = *name
	}
	if set["trace"] {
		cfg.Trace = *trace
	}
	if set["no-leak-check"] {
		cfg.NoLeakCheck = *noLeakCheck
	}

	if cfg.Input == "" {
		fmt.Fprintln(os.Stderr, "Usage: flowexec [flags] <program.dfb>")
		fmt.Fprintln(os.Stderr, "       flowexec -config <run.hcl>")
		fmt.Fprintln(os.Stderr, "       flowexec -i <program.dfb>  (interactive mode)")
		os.Exit(1)
	}

	if cfg.Trace {
		if err := telemetry.Init(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := driver.Run(context.Background(), cfg); err != nil {
		if errors.IsLeak(err) {
			// A leak means every later delta would blame the wrong
			// function; abort instead of exiting normally.
			logger, lerr := zap.NewProduction()
			if lerr != nil {
				logger = zap.NewNop()
			}
			logger.Fatal("async value leak", zap.Error(err))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
