// Command healthcheck queries a probe endpoint and exits non-zero unless it reports UP.
// It is meant for container HEALTHCHECK instructions where no curl is available.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/probe-tender/health"
)

var probePaths = map[string]string{
	"ready":   "/health/ready",
	"started": "/health/started",
	"live":    "/health/live",
	"all":     "/health",
}

type options struct {
	baseURL string
	probe   string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "healthcheck",
		Short:         "Query a probe-tender probe endpoint",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := check(cmd.Context(), opts)
			if opts.verbose && resp != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(resp)
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.baseURL, "url", envOr("HEALTHCHECK_URL", "http://localhost:9080"), "base URL of the service")
	flags.StringVar(&opts.probe, "probe", "ready", "probe to query: ready, started, live or all")
	flags.DurationVar(&opts.timeout, "timeout", 3*time.Second, "request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print the probe response")
	return cmd
}

// check fetches the probe and returns its body. The error is non-nil unless the
// service answered 200 with status UP.
func check(ctx context.Context, opts *options) (*health.ProbeResponse, error) {
	path, ok := probePaths[opts.probe]
	if !ok {
		return nil, fmt.Errorf("unknown probe %q", opts.probe)
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	url := strings.TrimRight(opts.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var resp health.ProbeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response (HTTP %d): %w", res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK || resp.Status != health.StatusUp {
		return &resp, errors.New(downSummary(res.StatusCode, resp))
	}
	return &resp, nil
}

func downSummary(code int, resp health.ProbeResponse) string {
	var parts []string
	for _, c := range resp.Checks {
		if c.Status() == health.StatusUp {
			continue
		}
		reason, _ := c.Value("reason")
		parts = append(parts, fmt.Sprintf("%s: %s", c.Name(), reason))
	}
	return fmt.Sprintf("probe DOWN (HTTP %d): %s", code, strings.Join(parts, "; "))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
