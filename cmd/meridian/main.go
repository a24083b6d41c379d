package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meridian-erp/meridian-erp/cmd/meridian/cli"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

const usage = `usage: meridian <command> [flags]

commands:
  period-open     -name NAME -start YYYY-MM-DD -end YYYY-MM-DD [-actor ID]
  period-close    -id PERIOD_ID [-actor ID]
  period-reopen   -id PERIOD_ID -reason TEXT [-actor ID]
  reconcile       -account ACCOUNT_ID
  trial-balance   [-asof YYYY-MM-DD]
  trigger         -task TASK_TYPE
  queue-stats
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	command := os.Args[1]
	args := os.Args[2:]

	if err := run(ctx, cfg, command, args); err != nil {
		fmt.Fprintf(os.Stderr, "meridian %s: %v\n", command, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, command string, args []string) error {
	switch command {
	case "trigger", "queue-stats":
		return runJobs(ctx, cfg, command, args)
	case "period-open", "period-close", "period-reopen", "reconcile", "trial-balance":
		return runLedger(ctx, cfg, command, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runJobs(ctx context.Context, cfg *app.Config, command string, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()

	switch command {
	case "trigger":
		fs := flag.NewFlagSet("trigger", flag.ExitOnError)
		task := fs.String("task", "", "task type to enqueue")
		if err := fs.Parse(args); err != nil {
			return err
		}
		info, err := jobsCLI.Trigger(ctx, *task)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case "queue-stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return nil
	}
	return fmt.Errorf("unknown jobs command %q", command)
}

func runLedger(ctx context.Context, cfg *app.Config, command string, args []string) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	ledger := cli.NewLedgerCLI(pool, os.Stdout)

	switch command {
	case "period-open":
		fs := flag.NewFlagSet("period-open", flag.ExitOnError)
		name := fs.String("name", "", "period name, e.g. 2026-01")
		start := fs.String("start", "", "start date YYYY-MM-DD")
		end := fs.String("end", "", "end date YYYY-MM-DD")
		actor := fs.Int64("actor", 0, "acting user id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		startDate, err := parseDate(*start)
		if err != nil {
			return err
		}
		endDate, err := parseDate(*end)
		if err != nil {
			return err
		}
		return ledger.OpenPeriod(ctx, *name, startDate, endDate, *actor)
	case "period-close":
		fs := flag.NewFlagSet("period-close", flag.ExitOnError)
		id := fs.Int64("id", 0, "period id")
		actor := fs.Int64("actor", 0, "acting user id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return ledger.ClosePeriod(ctx, *id, *actor)
	case "period-reopen":
		fs := flag.NewFlagSet("period-reopen", flag.ExitOnError)
		id := fs.Int64("id", 0, "period id")
		reason := fs.String("reason", "", "reason for reopening")
		actor := fs.Int64("actor", 0, "acting user id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return ledger.ReopenPeriod(ctx, *id, *actor, *reason)
	case "reconcile":
		fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
		account := fs.Int64("account", 0, "account id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return ledger.Reconcile(ctx, *account)
	case "trial-balance":
		fs := flag.NewFlagSet("trial-balance", flag.ExitOnError)
		asOf := fs.String("asof", "", "cutoff date YYYY-MM-DD, defaults to today")
		if err := fs.Parse(args); err != nil {
			return err
		}
		cutoff := time.Now()
		if *asOf != "" {
			cutoff, err = parseDate(*asOf)
			if err != nil {
				return err
			}
		}
		return ledger.TrialBalance(ctx, cutoff)
	}
	return fmt.Errorf("unknown ledger command %q", command)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date required")
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
