package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"OptRoll/internal/di"
	"OptRoll/internal/domain/models"
	"OptRoll/internal/report"
	"OptRoll/internal/usecase"
	"OptRoll/pkg/config"
	xlogger "OptRoll/pkg/logger"
	xutil "OptRoll/pkg/util"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization: %w", err)
			}
			return app.Run()
		},
	}
}

func seriesCmd() *cobra.Command {
	var (
		underlying, start, end, asOf string
		strict, deliver              bool
		out                          outputFlags
	)
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Build the rolled ATM series for an underlying",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}
			pinned, ok := xutil.ParseOptionalDate(asOf)
			if !ok {
				return fmt.Errorf("invalid --as-of %q", asOf)
			}
			return withCLI(func(ctx context.Context, cli *di.CLI) error {
				resp, err := cli.Runner.Series(ctx, usecase.SeriesRequest{
					Underlying: underlying,
					Start:      from,
					End:        to,
					AsOf:       pinned,
					Strict:     strict,
				})
				if err != nil {
					return err
				}
				if deliver {
					if err := cli.Processor.Process(ctx, underlying, resp.Data); err != nil {
						return fmt.Errorf("deliver series: %w", err)
					}
					cli.Logger.Info("series delivered",
						xlogger.String("sink", cli.Processor.Backend()),
						xlogger.Int("points", len(resp.Data)))
				}
				return out.write(report.Flatten(resp.Data), resp.Errors)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&underlying, "underlying", "u", "", "underlying ticker")
	f.StringVar(&start, "start", "", "first date (YYYY-MM-DD)")
	f.StringVar(&end, "end", "", "last date (YYYY-MM-DD)")
	f.StringVar(&asOf, "as-of", "", "date to discover the chain on (defaults to --start)")
	f.BoolVar(&strict, "strict", false, "report empty chains and unresolved rolls as errors")
	f.BoolVar(&deliver, "deliver", false, "send the series to the configured sink")
	out.register(cmd)
	_ = cmd.MarkFlagRequired("underlying")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func chainCmd() *cobra.Command {
	var (
		underlying, expiry, asOf, typ string
		strikeMin, strikeMax          float64
	)
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Show one expiry of an option chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := usecase.ChainRequest{Underlying: underlying}
			var ok bool
			if req.Expiry, ok = xutil.ParseOptionalDate(expiry); !ok {
				return fmt.Errorf("invalid --expiry %q", expiry)
			}
			if req.AsOf, ok = xutil.ParseOptionalDate(asOf); !ok {
				return fmt.Errorf("invalid --as-of %q", asOf)
			}
			if strikeMin > 0 {
				req.Filter.StrikeMin = models.Float(strikeMin)
			}
			if strikeMax > 0 {
				req.Filter.StrikeMax = models.Float(strikeMax)
			}
			if typ != "" && typ != "both" {
				t, ok := models.ParseOptionType(typ)
				if !ok {
					return fmt.Errorf("invalid --type %q", typ)
				}
				req.Filter.OptionTypes = []models.OptionType{t}
			}
			return withCLI(func(ctx context.Context, cli *di.CLI) error {
				resp, err := cli.Runner.Chain(ctx, req)
				if err != nil {
					return err
				}
				report.WriteChain(os.Stdout, resp.Data)
				writeErrors(resp.Errors)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&underlying, "underlying", "u", "", "underlying ticker")
	f.StringVar(&expiry, "expiry", "", "expiry to show (defaults to the nearest)")
	f.StringVar(&asOf, "as-of", "", "snapshot date (defaults to latest)")
	f.StringVar(&typ, "type", "both", "call, put or both")
	f.Float64Var(&strikeMin, "strike-min", 0, "lowest strike")
	f.Float64Var(&strikeMax, "strike-max", 0, "highest strike")
	_ = cmd.MarkFlagRequired("underlying")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		tickers, fields         []string
		start, end, periodicity string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Pull historical fields for explicit tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}
			p, ok := models.ParsePeriodicity(periodicity)
			if !ok {
				return fmt.Errorf("invalid --periodicity %q", periodicity)
			}
			ids := make([]models.FieldID, 0, len(fields))
			for _, f := range fields {
				ids = append(ids, models.FieldID(strings.ToUpper(f)))
			}
			return withCLI(func(ctx context.Context, cli *di.CLI) error {
				resp, err := cli.Runner.History(ctx, usecase.HistoryRequest{
					Tickers:     tickers,
					Fields:      ids,
					Start:       from,
					End:         to,
					Periodicity: p,
				})
				if err != nil {
					return err
				}
				report.WriteHistory(os.Stdout, resp.Data)
				writeErrors(resp.Errors)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&tickers, "ticker", "t", nil, "tickers, repeatable or comma separated")
	f.StringSliceVar(&fields, "field", nil, "field IDs (defaults to prices, volume and open interest)")
	f.StringVar(&start, "start", "", "first date (YYYY-MM-DD)")
	f.StringVar(&end, "end", "", "last date (YYYY-MM-DD)")
	f.StringVar(&periodicity, "periodicity", "daily", "daily, weekly, monthly, quarterly, semi_annually or yearly")
	_ = cmd.MarkFlagRequired("ticker")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// withCLI loads config, wires the runner and cancels fn on SIGINT.
func withCLI(fn func(ctx context.Context, cli *di.CLI) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cli, err := di.InitializeCLI(cfg)
	if err != nil {
		return fmt.Errorf("initialization: %w", err)
	}
	defer cli.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, cli)
}

type outputFlags struct {
	format string
	path   string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.format, "format", "f", "table", "table or csv")
	cmd.Flags().StringVarP(&o.path, "out", "o", "", "write to a file instead of stdout")
}

func (o *outputFlags) write(rows []report.Row, errs []models.ErrorDetail) error {
	var w io.Writer = os.Stdout
	if o.path != "" {
		if o.format == "csv" {
			if err := report.WriteCSVFile(o.path, rows); err != nil {
				return err
			}
			writeErrors(errs)
			return nil
		}
		f, err := os.Create(o.path)
		if err != nil {
			return fmt.Errorf("create %s: %w", o.path, err)
		}
		defer f.Close()
		w = f
	}

	switch o.format {
	case "csv":
		if err := report.WriteCSV(w, rows); err != nil {
			return err
		}
	case "table":
		report.WriteTable(w, rows)
	default:
		return fmt.Errorf("unknown --format %q", o.format)
	}
	writeErrors(errs)
	return nil
}

func writeErrors(errs []models.ErrorDetail) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\n%d error(s):\n", len(errs))
	report.WriteErrors(os.Stderr, errs)
}

func parseRange(start, end string) (civil.Date, civil.Date, error) {
	from, ok := xutil.ParseDate(start)
	if !ok {
		return civil.Date{}, civil.Date{}, fmt.Errorf("invalid --start %q", start)
	}
	to, ok := xutil.ParseDate(end)
	if !ok {
		return civil.Date{}, civil.Date{}, fmt.Errorf("invalid --end %q", end)
	}
	return from, to, nil
}
