package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yusufss4/swe573-practice-sub001/internal/api"
	"github.com/Yusufss4/swe573-practice-sub001/internal/daemon"
	"github.com/Yusufss4/swe573-practice-sub001/internal/domain"
)

// ─── Operational Commands ───────────────────────────────────────────────────
// These run against the configured store without starting the server, so
// a cron job or an operator can trigger them directly.

var version = api.Version

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	auditCmd.Flags().String("member", "", "Verify a single member instead of everyone")
}

// withDaemon opens the configured store, runs fn and closes it.
func withDaemon(cmd *cobra.Command, fn func(d *daemon.Daemon) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	d, err := daemon.New(cmd.Context(), cfg, newLogger(cmd, cfg))
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ─── sweep ──────────────────────────────────────────────────────────────────

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reveal ratings whose timeout window has elapsed",
	Long: `Run the rating timeout sweep once. It is idempotent: running it twice,
or concurrently with a server, reveals nothing extra.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, func(d *daemon.Daemon) error {
			res, err := d.Feedback.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

// ─── audit ──────────────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Verify cached balances against the ledger entries",
	Long: `Recompute every member's balance from the raw ledger entries and compare
it with the cached balance. Mismatches are reported, never corrected, and
the command exits non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		member, _ := cmd.Flags().GetString("member")
		return withDaemon(cmd, func(d *daemon.Daemon) error {
			if member != "" {
				rep, err := d.Ledger.VerifyIntegrity(cmd.Context(), member)
				if err != nil && !errors.Is(err, domain.ErrIntegrityMismatch) {
					return err
				}
				if perr := printJSON(cmd, rep); perr != nil {
					return perr
				}
				return err
			}
			rep, err := d.Ledger.AuditAll(cmd.Context())
			if perr := printJSON(cmd, rep); perr != nil {
				return perr
			}
			return err
		})
	},
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := daemon.OpenStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Driver)
		return store.Close()
	},
}

// ─── version ────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "timebank %s\n", version)
	},
}
