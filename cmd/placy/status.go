// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// EndpointStatus holds what one probe learned about a running server.
type EndpointStatus struct {
	Endpoint string `json:"endpoint"`
	URL      string `json:"url"`
	Up       bool   `json:"up"`
	Status   string `json:"status,omitempty"`
	Version  string `json:"version,omitempty"`
	Error    string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	apiURL     string
	metricsURL string
	timeout    time.Duration
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running placy server",
		Long:  `Query the health endpoint of the API and the readiness probe of the metrics server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.apiURL, "api-url", "http://127.0.0.1:8080", "base URL of the API")
	cmd.Flags().StringVar(&cfg.metricsURL, "metrics-url", "http://127.0.0.1:9100", "base URL of the metrics server (empty = skip)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-request timeout")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client := &http.Client{Timeout: cfg.timeout}

	statuses := []EndpointStatus{queryAPIHealth(ctx, client, cfg.apiURL)}
	if cfg.metricsURL != "" {
		statuses = append(statuses, queryReadiness(ctx, client, cfg.metricsURL))
	}

	if cfg.jsonOutput {
		output, err := formatStatusJSON(statuses)
		if err != nil {
			return err
		}
		cmd.Println(output)
		return nil
	}
	cmd.Print(formatStatusTable(statuses))
	return nil
}

func queryAPIHealth(ctx context.Context, client *http.Client, base string) EndpointStatus {
	status := EndpointStatus{Endpoint: "api", URL: strings.TrimRight(base, "/") + "/health"}

	resp, err := get(ctx, client, status.URL)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	var env struct {
		Success bool `json:"success"`
		Payload struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		} `json:"payload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		status.Error = fmt.Sprintf("failed to decode health response: %v", err)
		return status
	}

	status.Up = resp.StatusCode == http.StatusOK && env.Success
	status.Status = env.Payload.Status
	status.Version = env.Payload.Version
	if !status.Up {
		status.Error = fmt.Sprintf("unexpected response: HTTP %d", resp.StatusCode)
	}
	return status
}

func queryReadiness(ctx context.Context, client *http.Client, base string) EndpointStatus {
	status := EndpointStatus{Endpoint: "metrics", URL: strings.TrimRight(base, "/") + "/healthz/readiness"}

	resp, err := get(ctx, client, status.URL)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.Up = true
	if resp.StatusCode == http.StatusOK {
		status.Status = "ready"
	} else {
		status.Status = "not ready"
	}
	return status
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(statuses []EndpointStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ENDPOINT\tSTATE\tSTATUS\tVERSION\tURL")
	_, _ = fmt.Fprintln(w, "--------\t-----\t------\t-------\t---")

	for _, s := range statuses {
		if s.Up {
			version := s.Version
			if version == "" {
				version = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\tup\t%s\t%s\t%s\n", s.Endpoint, s.Status, version, s.URL)
			continue
		}
		reason := "unreachable"
		if s.Error != "" {
			reason = s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tdown\t%s\t-\t%s\n", s.Endpoint, reason, s.URL)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(statuses []EndpointStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_FORMAT_FAILED").Wrap(err)
	}
	return string(data), nil
}
