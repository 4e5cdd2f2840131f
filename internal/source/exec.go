package source

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/kalambet/marketscout/internal/listing"
)

// Exec runs an external fetcher process as `<command> <args...> <keyword>`.
// The process must print a JSON array of listings on stdout and exit 0.
type Exec struct {
	command string
	args    []string
}

func NewExec(command string, args ...string) *Exec {
	return &Exec{command: command, args: args}
}

func (e *Exec) Fetch(ctx context.Context, keyword string) ([]listing.Raw, error) {
	args := append(append([]string(nil), e.args...), keyword)
	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", e.command, ctx.Err())
		}
		return nil, fmt.Errorf("%s: %w (stderr: %s)", e.command, err, truncate(stderr.String(), 200))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, nil
	}
	return decodeListings(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
