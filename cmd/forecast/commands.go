package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/storage"
)

// forecaster is the part of the forecast service the commands use.
type forecaster interface {
	Generate(ctx context.Context, currency string) (core.ProjectionResult, error)
	Latest(ctx context.Context) (core.ProjectionResult, bool)
	Inspect(ctx context.Context) (storage.LoadOutcome, error)
	HistoricalYearly(ctx context.Context, currency string) ([]core.HistoricalYear, error)
	DefaultCurrency() string
}

// requestPublisher hands a forecast request to the worker queue.
type requestPublisher interface {
	PublishForecastRequest(ctx context.Context, msg *amqp.ForecastRequestMessage) error
}

// appContext is bound to every command's Run method. publisher is nil
// unless the command needs the broker.
type appContext struct {
	ctx       context.Context
	svc       forecaster
	publisher requestPublisher
	out       io.Writer
}

type runCmd struct {
	Currency string `short:"c" help:"Currency code to forecast. Defaults to DEFAULT_CURRENCY."`
	JSON     bool   `help:"Print the full result as JSON."`
}

func (c *runCmd) Run(app *appContext) error {
	result, err := app.svc.Generate(app.ctx, c.Currency)
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(app.out, result)
	}
	return writeProjection(app.out, result)
}

type showCmd struct {
	Table bool `help:"Print a table instead of JSON."`
}

func (c *showCmd) Run(app *appContext) error {
	result, ok := app.svc.Latest(app.ctx)
	if !ok {
		return fmt.Errorf("no projection stored, run `forecast run` first")
	}
	if c.Table {
		return writeProjection(app.out, result)
	}
	return writeJSON(app.out, result)
}

type statusCmd struct{}

func (c *statusCmd) Run(app *appContext) error {
	outcome, err := app.svc.Inspect(app.ctx)
	if err != nil {
		return fmt.Errorf("inspect result store: %w", err)
	}
	switch outcome.State {
	case storage.Present:
		_, err = fmt.Fprintf(app.out, "present: trained %s on %d months, %d projected\n",
			outcome.Result.TrainingDate.Format("2006-01-02 15:04 MST"),
			outcome.Result.HistoricalMonths,
			len(outcome.Result.Projections))
	case storage.Corrupt:
		_, err = fmt.Fprintf(app.out, "corrupt: %s\n", outcome.Reason)
	default:
		_, err = fmt.Fprintln(app.out, outcome.State)
	}
	return err
}

type enqueueCmd struct {
	Currency string `short:"c" help:"Currency code. Defaults to DEFAULT_CURRENCY."`
}

func (c *enqueueCmd) Run(app *appContext) error {
	if app.publisher == nil {
		return fmt.Errorf("AMQP_URL is not set or the broker is unreachable")
	}
	currency := c.Currency
	if currency == "" {
		currency = app.svc.DefaultCurrency()
	}
	msg := amqp.NewForecastRequestMessage(currency)
	if err := app.publisher.PublishForecastRequest(app.ctx, msg); err != nil {
		return fmt.Errorf("publish forecast request: %w", err)
	}
	_, err := fmt.Fprintf(app.out, "queued %s (run %s)\n", currency, msg.RunID)
	return err
}

type historyCmd struct {
	Currency string `short:"c" help:"Currency code. Defaults to DEFAULT_CURRENCY."`
}

func (c *historyCmd) Run(app *appContext) error {
	currency := c.Currency
	if currency == "" {
		currency = app.svc.DefaultCurrency()
	}
	years, err := app.svc.HistoricalYearly(app.ctx, currency)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "YEAR\tINCOME (%s)\tEXPENSES (%s)\tNET\t\n", currency, currency)
	for _, y := range years {
		income := decimal.NewFromFloat(y.Income)
		expenses := decimal.NewFromFloat(y.Expenses)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", y.Year,
			income.StringFixed(2), expenses.StringFixed(2), income.Sub(expenses).StringFixed(2))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeProjection(w io.Writer, result core.ProjectionResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MONTH\tINCOME\tEXPENSES\tNET\t")
	for _, p := range result.Projections {
		income := decimal.NewFromFloat(p.ProjectedIncome)
		expenses := decimal.NewFromFloat(p.ProjectedExpenses)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", p.MonthKey,
			income.StringFixed(2), expenses.StringFixed(2), income.Sub(expenses).StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	accuracy := "n/a"
	if result.ModelAccuracy != nil {
		accuracy = decimal.NewFromFloat(*result.ModelAccuracy).StringFixed(3)
	}
	_, err := fmt.Fprintf(w, "\ntrained on %d months at %s, accuracy %s\n",
		result.HistoricalMonths, result.TrainingDate.Format("2006-01-02 15:04 MST"), accuracy)
	return err
}
