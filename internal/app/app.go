package app

import (
	"context"
	"net/http"
	"time"

	"github.com/samber/lo"

	"api-integrator/internal/common/errors"
	commonhttp "api-integrator/internal/common/http"
	"api-integrator/internal/common/logging"
	"api-integrator/internal/config"
	"api-integrator/internal/orchestrator"
	"api-integrator/internal/source"
	"api-integrator/internal/supervisor"
)

// App holds all the application dependencies for one invocation
type App struct {
	Config       *config.Config
	Integration  *config.Integration
	HTTPClient   *http.Client
	Orchestrator *orchestrator.Orchestrator
	Supervisor   *supervisor.Supervisor
	Logger       logging.Logger
}

// New wires the source client, orchestrator and supervisor. A configuration
// error is returned before any network call when the integration is invalid.
// clientOpts are applied to the endpoint client after the configured timeout.
func New(cfg *config.Config, integration *config.Integration, clientOpts ...commonhttp.ClientOption) (*App, error) {
	logger := logging.GetGlobalLogger()

	app := &App{
		Config:      cfg,
		Integration: integration,
		HTTPClient: commonhttp.NewHTTPClient(
			append([]commonhttp.ClientOption{commonhttp.WithTimeout(cfg.Timeout())}, clientOpts...)...,
		),
		Logger: logger.WithFields(logging.Component("app")),
	}

	orch, err := orchestrator.New(
		integration.Endpoints,
		integration.Rules,
		source.NewClient(app.HTTPClient, logger),
		orchestrator.WithConcurrency(cfg.Concurrency()),
		orchestrator.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	app.Orchestrator = orch

	app.Supervisor = supervisor.New(logger, supervisor.WithHTTPClient(
		commonhttp.NewHTTPClient(commonhttp.WithTimeout(2*time.Second), commonhttp.WithoutKeepAlives()),
	))

	return app, nil
}

// NewSimulation wires an orchestrator that answers every fetch from local
// sample files. overrides replace the document's samples by endpoint name.
// Simulations never launch processes or open connections.
func NewSimulation(cfg *config.Config, integration *config.Integration, overrides map[string]string) (*App, error) {
	logger := logging.GetGlobalLogger()

	samples, err := source.LoadSamples(lo.Assign(integration.Samples, overrides))
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(
		integration.Endpoints,
		integration.Rules,
		samples,
		orchestrator.WithConcurrency(cfg.Concurrency()),
		orchestrator.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		Integration:  integration,
		Orchestrator: orch,
		Logger:       logger.WithFields(logging.Component("app")),
	}, nil
}

// StartProcesses launches the supervised processes of the integration
func (app *App) StartProcesses(ctx context.Context) error {
	if app.Supervisor == nil || len(app.Integration.Processes) == 0 {
		return nil
	}

	app.Logger.Info("Starting supervised processes", logging.Int("count", len(app.Integration.Processes)))
	if err := app.Supervisor.Start(ctx, app.Integration.Processes); err != nil {
		return errors.InternalError("supervised processes failed to start", err)
	}
	return nil
}

// Execute runs the orchestrator once
func (app *App) Execute(ctx context.Context, mode orchestrator.Mode) *orchestrator.RunOutcome {
	return app.Orchestrator.Run(ctx, mode)
}

// Cleanup stops every supervised process
func (app *App) Cleanup() {
	if app.Supervisor != nil {
		app.Supervisor.Shutdown(app.Config.Grace())
	}
	if app.HTTPClient != nil {
		app.HTTPClient.CloseIdleConnections()
	}
}
