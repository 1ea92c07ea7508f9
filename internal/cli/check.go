package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutu-network/vitals/internal/app/responder"
	"github.com/tutu-network/vitals/internal/daemon"
	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/health"
)

func init() {
	checkCmd.Flags().StringVar(&checkScope, "scope", string(domain.ScopeFull), "Assessment scope: full, incremental, specific-services")
	checkCmd.Flags().StringSliceVar(&checkServices, "service", nil, "Service to inspect (repeatable, implies --scope specific-services)")
	checkCmd.Flags().BoolVar(&checkAutoHeal, "auto-heal", false, "Run recovery strategies for detected incidents")
	checkCmd.Flags().BoolVar(&checkPredictive, "predictive", true, "Generate health predictions")
	checkCmd.Flags().BoolVar(&checkLearning, "learning", true, "Persist the profile for learning")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the full response as JSON")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Minute, "Give up after this long")
	rootCmd.AddCommand(checkCmd)
}

var (
	checkScope      string
	checkServices   []string
	checkAutoHeal   bool
	checkPredictive bool
	checkLearning   bool
	checkJSON       bool
	checkTimeout    time.Duration
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a one-shot health assessment",
	Long: `Run one health assessment against the configured platform and print the
score, incidents, healing actions and recommendations.`,
	Example: `  vitals check
  vitals check --service checkout --service payments
  vitals check --auto-heal --json`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	req, err := checkRequest()
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	resp, err := d.Responder.PerformHealthCheck(ctx, req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	out := cmd.OutOrStdout()
	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printAssessment(out, resp)
	return nil
}

// checkRequest builds the request from flags.
func checkRequest() (responder.HealthCheckRequest, error) {
	scope := domain.ScopeKind(checkScope)
	if len(checkServices) > 0 {
		scope = domain.ScopeServices
	}
	switch scope {
	case domain.ScopeFull, domain.ScopeIncremental, domain.ScopeServices:
	default:
		return responder.HealthCheckRequest{}, fmt.Errorf("unknown scope %q", checkScope)
	}
	return responder.HealthCheckRequest{
		Scope:      scope,
		Services:   checkServices,
		AutoHeal:   checkAutoHeal,
		Predictive: checkPredictive,
		Learning:   checkLearning,
	}, nil
}

// printAssessment renders a human-readable summary of one assessment.
func printAssessment(out io.Writer, resp responder.HealingResponse) {
	p := resp.Profile
	fmt.Fprintf(out, "%s  %s\n", p.SystemName, p.ID)
	fmt.Fprintf(out, "Health  %s\n", renderScoreBar(p.HealthScore))
	fmt.Fprintf(out, "Detected %d incident(s), healed %d, %d prediction(s)\n",
		resp.IncidentsDetected, resp.IncidentsHealed, resp.PredictionsGenerated)

	if len(p.Incidents) > 0 {
		fmt.Fprintln(out, "\nINCIDENTS")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSEVERITY\tTYPE\tSTATUS\tTITLE")
		for _, inc := range p.Incidents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				shortID(inc.ID), inc.Severity, inc.Type, inc.Status, inc.Title)
		}
		w.Flush()
	}

	if len(p.Actions) > 0 {
		fmt.Fprintln(out, "\nACTIONS")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tINCIDENT")
		for _, a := range p.Actions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Type, a.Status, shortID(a.IncidentID))
		}
		w.Flush()
	}

	if len(resp.Recommendations) > 0 {
		fmt.Fprintln(out, "\nRECOMMENDATIONS")
		for _, r := range resp.Recommendations {
			fmt.Fprintf(out, "  • %s\n", r)
		}
	}

	for _, warn := range resp.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warn)
	}
}

// renderScoreBar draws a 0-100 score as a fixed-width bar with its label.
func renderScoreBar(score int) string {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	const barWidth = 30
	filled := score * barWidth / 100
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">"
		bar += strings.Repeat(".", barWidth-filled-1)
	}
	return fmt.Sprintf("[%s] %3d %s", bar, score, health.Label(score))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
