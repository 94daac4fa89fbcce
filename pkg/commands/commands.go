package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/punctuality/pkg/api"
	"github.com/travigo/punctuality/pkg/app"
	"github.com/travigo/punctuality/pkg/config"
	"github.com/travigo/punctuality/pkg/fetcher"
	"github.com/travigo/punctuality/pkg/planner"
	"github.com/travigo/punctuality/pkg/routesync"
	"github.com/travigo/punctuality/pkg/stats"
	"github.com/travigo/punctuality/pkg/trains"
	"github.com/urfave/cli/v2"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

var rangeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "start",
		Usage: "first date to include (YYYY-MM-DD), defaults to 13 days ago",
	},
	&cli.StringFlag{
		Name:  "end",
		Usage: "last date to include (YYYY-MM-DD), defaults to today",
	},
	&cli.StringFlag{
		Name:  "trains",
		Usage: "outbound and return train numbers, e.g. 1719,9700",
	},
}

// setup is replaced in tests to run against a prepared application
var setup = func(ctx context.Context) (*app.Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Setup(ctx, cfg)
}

func withApplication(action func(c *cli.Context, application *app.Application) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		application, err := setup(c.Context)
		if err != nil {
			return err
		}
		defer application.Close()

		return action(c, application)
	}
}

func rangeFromFlags(c *cli.Context, application *app.Application) (string, string, trains.TrainPair, error) {
	start, end := application.Calendar.DefaultDateRange()
	if c.String("start") != "" {
		start = c.String("start")
	}
	if c.String("end") != "" {
		end = c.String("end")
	}

	pair := application.Config.DefaultPair()
	if c.String("trains") != "" {
		parsed, err := trains.ParseTrainPair(c.String("trains"))
		if err != nil {
			return "", "", pair, err
		}
		pair = parsed
	}

	if err := planner.ValidateRange(application.Calendar, start, end); err != nil {
		return "", "", pair, err
	}

	if application.Calendar.IsEndDateInFuture(end) {
		log.Warn().Str("end", end).Msg("End date is in the future, only dates up to today are fetched")
	}

	return start, end, pair, nil
}

func Commands() []*cli.Command {
	return []*cli.Command{
		fetchCommand(),
		planCommand(),
		routeCommand(),
		cacheCommand(),
	}
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "fetch punctuality for a date range, using the cache where possible",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Value: formatTable,
				Usage: "output format: table, json or csv",
			},
			&cli.BoolFlag{
				Name:  "ascending",
				Usage: "list oldest dates first",
			},
		}, rangeFlags...),
		Action: withApplication(func(c *cli.Context, application *app.Application) error {
			start, end, pair, err := rangeFromFlags(c, application)
			if err != nil {
				return err
			}

			result, err := application.Orchestrator.PlanAndFetch(c.Context, start, end, pair)

			var budgetError *fetcher.BudgetExceededError
			if errors.As(err, &budgetError) {
				return cli.Exit(err.Error(), 2)
			}
			if err != nil {
				return err
			}

			observations := stats.SortByDate(result.Data, c.Bool("ascending"))

			return writeObservations(c.App.Writer, c.String("format"), application, pair, observations)
		}),
	}
}

func writeObservations(w io.Writer, format string, application *app.Application, pair trains.TrainPair, observations []*trains.Observation) error {
	switch format {
	case formatCSV:
		return stats.WriteCSV(w, application.Calendar, observations)
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(observations)
	case formatTable:
		writeTable(w, application, pair, observations)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeTable(w io.Writer, application *app.Application, pair trains.TrainPair, observations []*trains.Observation) {
	titles := map[int]string{
		application.Config.Outbound.Number: application.Config.Outbound.Title(),
		application.Config.Return.Number:   application.Config.Return.Title(),
	}

	summaries := stats.SummariesByTrain(observations, pair)

	for _, trainNumber := range pair {
		summary := summaries[trainNumber]

		title, ok := titles[trainNumber]
		if !ok {
			title = fmt.Sprintf("Train %d", trainNumber)
		}

		fmt.Fprintf(w, "%s\n", title)
		fmt.Fprintf(w, "  on time %.0f%%  slight delay %.0f%%  delayed %.0f%%  cancelled %d  average delay %.1f min  (%d trains)\n",
			summary.OnTimePercent, summary.SlightDelayPercent, summary.DelayedPercent,
			summary.CancelledCount, summary.AverageDelay, summary.TotalCount)
	}

	fmt.Fprintln(w)

	for _, observation := range observations {
		actual := "-"
		if observation.ActualDeparture != nil {
			actual = application.Calendar.FormatTime(*observation.ActualDeparture)
		}

		fmt.Fprintf(w, "%-10s %-5d %-6s %-5s %-5s %+4d  %s\n",
			application.Calendar.FormatDate(observation.Date),
			observation.TrainNumber,
			observation.TrainType,
			application.Calendar.FormatTime(observation.ScheduledDeparture),
			actual,
			observation.DelayMinutes,
			observation.Status,
		)
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "show how many remote calls a fetch would need",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "dump the full plan",
			},
		}, rangeFlags...),
		Action: withApplication(func(c *cli.Context, application *app.Application) error {
			start, end, pair, err := rangeFromFlags(c, application)
			if err != nil {
				return err
			}

			ceiling := application.Orchestrator.MaxAPICalls

			plan, err := application.Planner.PlanWithin(c.Context, start, end, pair.Numbers(), ceiling)
			if err != nil {
				return err
			}

			if c.Bool("debug") {
				pretty.Fprintf(c.App.Writer, "%# v\n", plan)
			}

			fmt.Fprintf(c.App.Writer, "%d business days, %d cached, %d calls needed (maximum %d)\n",
				len(plan.BusinessDays), len(plan.Cached), plan.NeededCalls, ceiling)

			if plan.Exceeds(ceiling) {
				fmt.Fprintln(c.App.Writer, "Too many calls needed, narrow the date range")
			}

			return nil
		}),
	}
}

func routeCommand() *cli.Command {
	return &cli.Command{
		Name:  "route",
		Usage: "trains running on the monitored route",
		Subcommands: []*cli.Command{
			{
				Name:  "refresh",
				Usage: "look up today's trains unless already done today",
				Action: withApplication(func(c *cli.Context, application *app.Application) error {
					refreshed, err := application.Refresher.RefreshOnce(c.Context)
					if err != nil {
						return err
					}
					if !refreshed {
						fmt.Fprintln(c.App.Writer, "Route already refreshed today")
					}
					return nil
				}),
			},
			{
				Name:  "show",
				Usage: "list the stored route trains per direction",
				Action: withApplication(func(c *cli.Context, application *app.Application) error {
					snapshot, ok := application.Cache.RouteSnapshot(c.Context)
					if !ok {
						return cli.Exit("no route snapshot stored, run route refresh first", 1)
					}

					fmt.Fprintf(c.App.Writer, "Route trains on %s\n", snapshot.ReferenceDate)

					for _, direction := range []trains.Direction{trains.DirectionOutbound, trains.DirectionReturn} {
						fmt.Fprintf(c.App.Writer, "%s\n", direction)
						for _, train := range routesync.Candidates(snapshot, direction) {
							fmt.Fprintf(c.App.Writer, "  %-5d %-4s %s %s -> %s\n",
								train.TrainNumber,
								train.TrainType,
								application.Calendar.FormatTime(train.ScheduledDeparture),
								train.From,
								train.To,
							)
						}
					}

					return nil
				}),
			},
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "manage the local observation cache",
		Subcommands: []*cli.Command{
			{
				Name:  "sweep",
				Usage: "remove observations past the retention window",
				Action: withApplication(func(c *cli.Context, application *app.Application) error {
					removed, err := application.Cache.Sweep(c.Context)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Removed %d expired observations\n", removed)
					return nil
				}),
			},
			{
				Name:  "reset",
				Usage: "remove every cached entry",
				Action: withApplication(func(c *cli.Context, application *app.Application) error {
					if err := application.Cache.Reset(c.Context, app.Version); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "Cache cleared")
					return nil
				}),
			},
		},
	}
}

// NewApp builds the command line application
func NewApp() *cli.App {
	return &cli.App{
		Name:        "punctuality",
		Usage:       "commuter train punctuality tracker",
		Description: "Fetches and caches punctuality of a commuter train pair from Digitraffic",
		Version:     app.Version,
		Writer:      os.Stdout,

		Commands: append(Commands(), api.RegisterCLI()),
	}
}
