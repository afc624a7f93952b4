package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"todoq/internal/analytics"
)

type kindStatsJSON struct {
	Kind          string  `json:"kind"`
	Total         int     `json:"total"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	LastErrorType string  `json:"last_error_type,omitempty"`
}

type statsResponse struct {
	Kinds  []kindStatsJSON `json:"kinds"`
	Result string          `json:"result"`
}

// newStatsCmd creates the 'stats' subcommand that summarizes the mutation journal
func newStatsCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize how past changes fared against the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(env)
			if err != nil {
				return err
			}

			tracker, err := analytics.NewTracker(filepath.Join(dataDir(env), "analytics.db"),
				analytics.IsEnabledFromEnv(cfg.IsAnalyticsEnabled()))
			if err != nil {
				return fmt.Errorf("failed to open mutation journal: %w", err)
			}
			defer func() { _ = tracker.Close() }()

			summaries, err := tracker.Summary()
			if err != nil {
				return fmt.Errorf("failed to read mutation journal: %w", err)
			}

			if env.jsonOutput() {
				out := make([]kindStatsJSON, 0, len(summaries))
				for _, s := range summaries {
					out = append(out, kindStatsJSON{
						Kind:          s.Kind,
						Total:         s.Total,
						Succeeded:     s.Succeeded,
						Failed:        s.Failed,
						SuccessRate:   s.SuccessRate(),
						AvgDurationMs: s.AvgDurationMs,
						LastErrorType: s.LastErrorType,
					})
				}
				return writeJSON(env.stdout, statsResponse{Kinds: out, Result: ResultInfoOnly})
			}

			if !tracker.Enabled() {
				_, _ = fmt.Fprintln(env.stdout, "Mutation journal is disabled (analytics.enabled: false)")
			}
			if len(summaries) == 0 {
				_, _ = fmt.Fprintln(env.stdout, "No changes recorded yet")
				return nil
			}

			_, err = fmt.Fprintln(env.stdout, statsTable(summaries))
			return err
		},
	}
}

// statsTable renders one row per mutation kind
func statsTable(summaries []analytics.KindSummary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KIND", "TOTAL", "OK", "FAILED", "SUCCESS", "AVG MS", "LAST ERROR").
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, s := range summaries {
		lastErr := s.LastErrorType
		if lastErr == "" {
			lastErr = "-"
		}
		t.Row(s.Kind,
			fmt.Sprintf("%d", s.Total),
			fmt.Sprintf("%d", s.Succeeded),
			fmt.Sprintf("%d", s.Failed),
			fmt.Sprintf("%.0f%%", s.SuccessRate()*100),
			fmt.Sprintf("%.0f", s.AvgDurationMs),
			lastErr)
	}
	return t.Render()
}
