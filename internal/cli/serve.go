package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tutu-network/vitals/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveAutonomous, "autonomous", false, "Start autonomous healing immediately")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost       string
	servePort       int
	serveAutonomous bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Vitals API server",
	Long:  `Start the incident-response API at localhost:8477.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		d.Config.API.Host = serveHost
	}
	if servePort > 0 {
		d.Config.API.Port = servePort
	}
	if serveAutonomous {
		d.Config.Scheduler.Autostart = true
	}

	return d.Serve(context.Background())
}
