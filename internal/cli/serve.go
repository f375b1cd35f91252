package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/Yusufss4/swe573-practice-sub001/internal/daemon"
)

// ─── serve ──────────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("quiet", false, "Skip the startup banner")
	serveCmd.Flags().Int("port", 0, "Override [api].port")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the settlement core HTTP server",
	Long: `Start the HTTP API. The server runs until SIGINT or SIGTERM, then drains
in-flight requests and queued notifications before exiting.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}
	logger := newLogger(cmd, cfg)

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		figure.NewFigure("TimeBank", "puffy", true).Print()
		fmt.Fprintf(cmd.OutOrStdout(), "settlement core %s on %s (%s store)\n\n",
			version, cfg.API.Addr(), cfg.Database.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()
	return d.Serve(ctx)
}
