// covenantctl is a small operator CLI for a running covenant server. It talks
// to the HTTP API; it never opens the database directly.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	apiKey     string
)

func main() {
	root := &cobra.Command{
		Use:   "covenantctl",
		Short: "Operator CLI for the covenant belief-graph server",
	}
	root.PersistentFlags().StringVar(&serverAddr, "addr", "http://localhost:8080", "server address")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("COVENANT_API_KEY"), "API key (defaults to COVENANT_API_KEY)")

	root.AddCommand(healthCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(reviewsCmd())
	root.AddCommand(resolveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return get("/health", nil)
		},
	}
}

func auditCmd() *cobra.Command {
	var limit int
	var action, actor, edgeID string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit log entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{
				"limit":   fmt.Sprintf("%d", limit),
				"action":  action,
				"actor":   actor,
				"edge_id": edgeID,
			}
			return get("/v1/audit", params)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to return")
	cmd.Flags().StringVar(&action, "action", "", "filter by action (e.g. DELETE_ATTEMPT)")
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor")
	cmd.Flags().StringVar(&edgeID, "edge-id", "", "filter by edge id")
	return cmd
}

func reviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Inspect the dissonance review queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			return get("/v1/dissonance/reviews", nil)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <review-id>",
		Short: "Show one review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get("/v1/dissonance/reviews/"+args[0], nil)
		},
	})
	return cmd
}

func resolveCmd() *cobra.Command {
	var resolutionType, reason, resolvedBy string

	cmd := &cobra.Command{
		Use:   "resolve <review-id>",
		Short: "Resolve a pending review with a resolution hyperedge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{
				"resolution_type": strings.ToUpper(resolutionType),
				"reason":          reason,
				"resolved_by":     resolvedBy,
			}
			return post("/v1/dissonance/reviews/"+args[0]+"/resolve", body)
		},
	}
	cmd.Flags().StringVar(&resolutionType, "type", "", "resolution type: EVOLUTION, CONTRADICTION or NUANCE")
	cmd.Flags().StringVar(&reason, "reason", "", "resolution context recorded on the hyperedge")
	cmd.Flags().StringVar(&resolvedBy, "by", "", "resolving actor")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func get(path string, params map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, serverAddr+path, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	req.URL.RawQuery = q.Encode()
	return do(req)
}

func post(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, serverAddr+path, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req)
}

func do(req *http.Request) error {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Pretty-print JSON bodies; pass anything else through.
	var pretty map[string]any
	if json.Unmarshal(raw, &pretty) == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println(string(raw))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
