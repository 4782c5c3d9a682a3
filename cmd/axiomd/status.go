package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running node's /debug/idle_state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:8009", "base URL of the node to query")
	rootCmd.AddCommand(statusCmd)
}

// idleState mirrors httpapi.IdleState's wire shape; cmd/axiomd does
// not import internal/httpapi to keep the CLI decoupled from the
// server's package graph.
type idleState struct {
	NodePort                    int     `json:"node_port"`
	NodeRole                    string  `json:"node_role"`
	AdvertisedURL               string  `json:"advertised_url"`
	DBPath                      string  `json:"db_path"`
	MainCycleIntervalSec        int     `json:"main_cycle_interval_sec"`
	IdleSuiteIntervalSec        int     `json:"idle_suite_interval_sec"`
	LastMainCycleAgeSec         float64 `json:"last_main_cycle_age_sec"`
	LastIdleLearningAgeSec      float64 `json:"last_idle_learning_age_sec"`
	LastCodeIntrospectionAgeSec float64 `json:"last_code_introspection_age_sec"`
	LastDataQualityAgeSec       float64 `json:"last_data_quality_age_sec"`
	LastFragmentAuditAgeSec     float64 `json:"last_fragment_audit_age_sec"`
	LastHealthSnapshotAgeSec    float64 `json:"last_health_snapshot_age_sec"`
	LastSelfChecksAgeSec        float64 `json:"last_self_checks_age_sec"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(statusURL + "/debug/idle_state")
	if err != nil {
		return fmt.Errorf("query %s: %w", statusURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		fmt.Fprintln(os.Stdout, colorize(statusURL+" is not initialized yet", "33"))
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %s: unexpected status %d", statusURL, resp.StatusCode)
	}

	var state idleState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return fmt.Errorf("decode idle state: %w", err)
	}

	printStatus(state)
	return nil
}

func printStatus(s idleState) {
	header := fmt.Sprintf("node %s (port %d, role %s)", s.AdvertisedURL, s.NodePort, s.NodeRole)
	fmt.Fprintln(os.Stdout, colorize(header, "1"))
	fmt.Printf("  db: %s\n", s.DBPath)
	fmt.Printf("  main cycle: every %ds, last ran %.0fs ago\n", s.MainCycleIntervalSec, s.LastMainCycleAgeSec)
	fmt.Printf("  idle suite: every %ds\n", s.IdleSuiteIntervalSec)
	fmt.Printf("    idle learning:      %.0fs ago\n", s.LastIdleLearningAgeSec)
	fmt.Printf("    code introspection: %.0fs ago\n", s.LastCodeIntrospectionAgeSec)
	fmt.Printf("    data quality:       %.0fs ago\n", s.LastDataQualityAgeSec)
	fmt.Printf("    fragment audit:     %.0fs ago\n", s.LastFragmentAuditAgeSec)
	fmt.Printf("    health snapshot:    %.0fs ago\n", s.LastHealthSnapshotAgeSec)
	fmt.Printf("    self checks:        %.0fs ago\n", s.LastSelfChecksAgeSec)
}

// colorize wraps s in the given SGR code when stdout is a terminal,
// and returns it unchanged otherwise (e.g. piped into another tool).
func colorize(s, sgr string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return s
	}
	return fmt.Sprintf("\x1b[%sm%s\x1b[0m", sgr, s)
}
