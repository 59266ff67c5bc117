package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hazz-dev/readycheck/internal/readiness"
	"github.com/hazz-dev/readycheck/internal/server"
)

// errCheckFailed makes the process exit non-zero when the backend is not
// reachable.
var errCheckFailed = errors.New("backend connection failed")

// executeCheck mounts one page, waits for it to settle and prints the result
// the way the page would show it.
func executeCheck(ctx context.Context, out io.Writer, newPage server.PageFactory) error {
	page := newPage()
	c := page.Mount(ctx)
	defer c.Unmount()

	v := page.Wait(ctx, c)

	fmt.Fprintf(out, "Backend URL: %s\n", page.BaseURL())
	fmt.Fprintf(out, "Status:      %s\n", v.StatusText())
	if detail := v.DetailText(); detail != "" {
		fmt.Fprintln(out, detail)
	}

	switch v.State() {
	case readiness.StateConnected:
		return nil
	case readiness.StateChecking:
		return fmt.Errorf("check interrupted: %w", ctx.Err())
	default:
		return errCheckFailed
	}
}
