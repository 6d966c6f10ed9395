package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// EndpointStatus is the result of probing one endpoint of the bridge.
type EndpointStatus struct {
	Name      string `json:"name"`
	State     string `json:"state"` // healthy, unhealthy
	LatencyMs int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
	Endpoint  string `json:"endpoint"`
}

// StatusOutput is the report printed by the status command.
type StatusOutput struct {
	Timestamp string           `json:"timestamp"`
	Endpoints []EndpointStatus `json:"endpoints"`
	Overall   string           `json:"overall"` // healthy, unhealthy, partial
}

func newStatusCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the health and readiness of a running bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output := checkBridge(cmd.Context(), &http.Client{Timeout: timeout}, baseURL)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(output); err != nil {
				return err
			}
			if output.Overall != "healthy" {
				return fmt.Errorf("bridge is %s", output.Overall)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "Bridge base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "Per-endpoint timeout")
	return cmd
}

func checkBridge(ctx context.Context, client *http.Client, baseURL string) StatusOutput {
	if ctx == nil {
		ctx = context.Background()
	}
	baseURL = strings.TrimRight(baseURL, "/")
	endpoints := []EndpointStatus{
		checkEndpoint(ctx, client, "health", baseURL+"/healthz"),
		checkEndpoint(ctx, client, "readiness", baseURL+"/readyz"),
	}

	healthy := 0
	for _, e := range endpoints {
		if e.State == "healthy" {
			healthy++
		}
	}
	overall := "partial"
	switch healthy {
	case len(endpoints):
		overall = "healthy"
	case 0:
		overall = "unhealthy"
	}
	return StatusOutput{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Endpoints: endpoints,
		Overall:   overall,
	}
}

func checkEndpoint(ctx context.Context, client *http.Client, name, endpoint string) EndpointStatus {
	start := time.Now()
	status := EndpointStatus{Name: name, Endpoint: endpoint, State: "unhealthy"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		status.Message = err.Error()
		return status
	}
	resp, err := client.Do(req)
	status.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		status.Message = err.Error()
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.Message = resp.Status
		return status
	}
	status.State = "healthy"
	return status
}
