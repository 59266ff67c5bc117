package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/readycheck/internal/storage"
)

// percentWindow is how many recent checks the connected percentage covers.
const percentWindow = 100

type statusStore interface {
	History(ctx context.Context, limit, offset int) ([]storage.Check, int, error)
	ConnectedPercent(ctx context.Context, last int) (float64, error)
}

func executeStatus(cmd *cobra.Command, db statusStore, limit int) error {
	out := cmd.OutOrStdout()
	ctx := context.Background()

	checks, total, err := db.History(ctx, limit, 0)
	if err != nil {
		return fmt.Errorf("querying history: %w", err)
	}

	if len(checks) == 0 {
		fmt.Fprintln(out, "No check history. Run 'readycheck serve' or 'readycheck check' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECKED AT\tBACKEND\tSTATE\tHTTP\tRESPONSE\tDETAIL")
	for _, c := range checks {
		status := "-"
		if c.HTTPStatus != nil {
			status = strconv.Itoa(*c.HTTPStatus)
		}
		resp := "-"
		if c.ResponseMs > 0 {
			resp = (time.Duration(c.ResponseMs) * time.Millisecond).String()
		}
		detail := c.Error
		if c.State == "connected" {
			detail = c.Service
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.CheckedAt.Local().Format("2006-01-02 15:04:05"),
			c.BackendURL,
			c.State,
			status,
			resp,
			detail,
		)
	}
	w.Flush()

	pct, err := db.ConnectedPercent(ctx, percentWindow)
	if err != nil {
		return fmt.Errorf("querying connected percent: %w", err)
	}
	fmt.Fprintf(out, "\nShowing %d of %d checks. Connected %.1f%% of the last %d.\n",
		len(checks), total, pct, min(total, percentWindow))
	return nil
}
