package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/export"
	transport "timed-quiz-service/internal/transport/http"

	"github.com/spf13/cobra"
)

// NewSweepCmd runs the orphaned result sweep once.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete results whose quiz no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			application, err := buildApplication(cmd.Context(), cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer application.Close()

			deleted, err := application.service.SweepOrphanedResults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d orphaned results\n", deleted)
			return nil
		},
	}
}

// NewExportCmd writes all results to an Excel workbook.
func NewExportCmd(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-results",
		Short: "Export all results to an .xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			application, err := buildApplication(cmd.Context(), cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer application.Close()

			results, err := application.service.ListAllResults(cmd.Context(), operator())
			if err != nil {
				return err
			}
			data, err := export.ResultsWorkbook(results)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d results to %s\n", len(results), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "results.xlsx", "output file")
	return cmd
}

// NewTokenCmd issues a signed access token, for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		name   string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwtSecret not configured")
			}
			r := domain.Role(strings.ToUpper(role))
			if r != domain.RoleUser && r != domain.RoleAdmin {
				return fmt.Errorf("unknown role %q", role)
			}
			if ttl <= 0 {
				ttl = config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour)
			}
			token, err := transport.NewAuth(cfg.Auth.JWTSecret, ttl).IssueToken(userID, name, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "USER or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.tokenTTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
