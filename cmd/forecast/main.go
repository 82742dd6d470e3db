// Command forecast runs the forecasting pipeline once from the terminal and
// inspects the stored projections.
package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"

	"cashflow/internal/cli"
	"cashflow/internal/log"
)

// commands available
var commands struct {
	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"warn" help:"Log level (debug, info, warn, error)."`

	Run     runCmd     `cmd:"" help:"Train both models and save a new projection."`
	Show    showCmd    `cmd:"" help:"Print the stored projection as JSON."`
	Status  statusCmd  `cmd:"" help:"Report whether a stored projection exists and is readable."`
	History historyCmd `cmd:"" help:"Print per-year income and expense totals from the source."`
	Enqueue enqueueCmd `cmd:"" help:"Ask the forecast worker to regenerate projections."`
}

func main() {
	cli.LoadEnvFile()

	kctx := kong.Parse(&commands,
		kong.Name("forecast"),
		kong.Description("Personal cashflow forecasting."),
		kong.UsageOnError(),
	)

	logger := cli.SetupLogger(log.ComponentCLI, commands.LogLevel)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)
	svc := cli.NewForecastService(cfg, res, nil)
	app := &appContext{ctx: ctx, svc: svc, out: os.Stdout}

	if kctx.Command() == "enqueue" {
		if client := cli.InitAMQP(ctx, logger, cfg); client != nil {
			defer client.Close()
			app.publisher = client
		}
	}

	err := kctx.Run(app)
	if cerr := res.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup failed", "error", cerr)
	}
	kctx.FatalIfErrorf(err)
}
