// Package app wires configuration, logging, supervised processes and the
// orchestrator into the command line entry point.
package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"api-integrator/internal/common/errors"
	"api-integrator/internal/common/logging"
	"api-integrator/internal/config"
	"api-integrator/internal/mapping"
	"api-integrator/internal/orchestrator"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitError          = 1
	ExitPartialFailure = 2
)

const usage = `Usage: api-integrator [command] [flags]

Commands:
  run      fetch, transform and send every rule (default)
  plan     fetch and transform, print the payloads without sending
  check    fetch every source and test that every send target answers
  fields   list the field paths of every fetched body, or of a JSON file given as argument
  simulate transform local sample bodies (endpoint "sample" or -sample) without any network call

Flags:
`

type options struct {
	command       string
	configPath    string
	format        string
	skipProcesses bool
	samples       map[string]string
	args          []string
}

// Run is the main entry point. It returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	// Load environment variables
	_ = godotenv.Load()

	opts, err := parseArgs(args, stderr)
	if err == flag.ErrHelp {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}

	cfg := config.Load()
	if opts.configPath != "" {
		cfg.IntegrationFile = opts.configPath
	}
	if opts.format != "" {
		cfg.OutputFormat = opts.format
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}

	closer, err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}
	defer closer.Close()
	defer logging.MustSync()

	if opts.command == "fields" && len(opts.args) > 0 {
		return printFileFields(opts.args[0], cfg.OutputFormat, stdout, stderr)
	}

	integration, err := config.LoadIntegration(cfg.IntegrationFile)
	if err != nil {
		logging.Error("Failed to load integration", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}

	// Signals stay captured until Cleanup has stopped every child.
	ctx, stop := notifyShutdown(context.Background())
	defer stop()

	var app *App
	if opts.command == "simulate" {
		app, err = NewSimulation(cfg, integration, opts.samples)
	} else {
		app, err = New(cfg, integration)
	}
	if err != nil {
		logging.Error("Invalid integration", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}
	defer app.Cleanup()

	if !opts.skipProcesses {
		if err := app.StartProcesses(ctx); err != nil {
			logging.Error("Failed to start supervised processes", err)
			fmt.Fprintf(stderr, "error: %v\n", err)
			return ExitError
		}
	}

	mode := modeFor(opts.command)
	outcome := app.Execute(ctx, mode)

	if err := render(stdout, cfg.OutputFormat, opts.command, outcome); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}

	if ctx.Err() != nil {
		logging.Warn("Run interrupted", logging.RunID(outcome.RunID))
	}
	if outcome.Status != orchestrator.StatusSuccess {
		return ExitPartialFailure
	}
	return ExitSuccess
}

// shutdownSignals cancel the run and trigger the supervised shutdown
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// notifyShutdown returns a context cancelled by the first shutdown signal.
// Later signals are swallowed until stop is called.
func notifyShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}

// parseArgs accepts the command before or after the flags
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{command: "run", samples: make(map[string]string)}

	explicit := len(args) > 0 && !strings.HasPrefix(args[0], "-")
	if explicit {
		opts.command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("api-integrator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.configPath, "config", "", "integration document (overrides INTEGRATION_CONFIG)")
	fs.StringVar(&opts.format, "format", "", "report format: text or json (overrides OUTPUT_FORMAT)")
	fs.BoolVar(&opts.skipProcesses, "skip-processes", false, "do not launch the supervised processes")
	fs.Func("sample", "endpoint=file sample body for simulate, repeatable", func(value string) error {
		name, file, ok := strings.Cut(value, "=")
		if !ok || name == "" || file == "" {
			return fmt.Errorf("sample %q must be endpoint=file", value)
		}
		opts.samples[name] = file
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	if !explicit && len(rest) > 0 {
		opts.command, rest = rest[0], rest[1:]
	}
	opts.args = rest

	switch opts.command {
	case "run", "plan", "check", "fields", "simulate":
	default:
		fs.Usage()
		return nil, errors.ValidationError(fmt.Sprintf("unknown command %q", opts.command))
	}
	return opts, nil
}

func modeFor(command string) orchestrator.Mode {
	switch command {
	case "plan":
		return orchestrator.ModePlan
	case "check":
		return orchestrator.ModeCheck
	case "fields":
		return orchestrator.ModeFields
	case "simulate":
		return orchestrator.ModeSimulate
	default:
		return orchestrator.ModeRun
	}
}

// printFileFields lists the fields of a local JSON sample; "-" reads stdin
func printFileFields(path, format string, stdout, stderr io.Writer) int {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}

	body, err := mapping.DecodeJSON(data)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s is not valid JSON: %v\n", path, err)
		return ExitError
	}

	if err := renderFields(stdout, format, mapping.Fields(body)); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}
