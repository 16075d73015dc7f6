// Command grcctl is the operator CLI for the GRC API: schema migrations,
// ad-hoc risk scoring, and minting access tokens for local testing.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"grc-platform/internal/auth"
	"grc-platform/internal/config"
	"grc-platform/internal/rbac"
	"grc-platform/internal/risk"
	"grc-platform/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		// cobra already printed the error
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "grcctl",
		Short:         "Operate the GRC platform",
		SilenceUsage:  true,
	}
	root.SetOut(out)
	root.AddCommand(newMigrateCmd(), newScoreCmd(), newTokenCmd())
	return root
}

type migrateFlags struct {
	source      string
	databaseURL string
	steps       int
}

// resolve fills the database URL from DATABASE_URL or, failing that, the API config.
func (f *migrateFlags) resolve() error {
	if f.databaseURL == "" {
		f.databaseURL = os.Getenv("DATABASE_URL")
	}
	if f.databaseURL != "" {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return codeError(3, "no --database-url and config invalid: %v", err)
	}
	f.databaseURL = cfg.PostgresURL()
	if f.source == "" {
		f.source = cfg.App.MigrationsSource
	}
	return nil
}

func newMigrateCmd() *cobra.Command {
	var flags migrateFlags
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.source, "source", "file://migrations", "golang-migrate source URL")
	pf.StringVar(&flags.databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL, then DB_* settings)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.resolve(); err != nil {
				return err
			}
			if err := utils.MigrateUp(flags.source, flags.databaseURL); err != nil {
				return codeError(1, "migrate up: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.steps <= 0 {
				return codeError(3, "--steps must be positive")
			}
			if err := flags.resolve(); err != nil {
				return err
			}
			if err := utils.MigrateDown(flags.source, flags.databaseURL, flags.steps); err != nil {
				return codeError(1, "migrate down: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", flags.steps)
			return nil
		},
	}
	down.Flags().IntVar(&flags.steps, "steps", 1, "Number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.resolve(); err != nil {
				return err
			}
			v, dirty, err := utils.MigrationVersion(flags.source, flags.databaseURL)
			if err != nil {
				return codeError(1, "migrate version: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <likelihood> <impact>",
		Short: "Compute a risk score and band",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := strconv.Atoi(args[0])
			if err != nil {
				return codeError(3, "likelihood must be an integer")
			}
			i, err := strconv.Atoi(args[1])
			if err != nil {
				return codeError(3, "impact must be an integer")
			}
			score, band, err := risk.Score(l, i)
			if err != nil {
				return codeError(3, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "score=%d band=%s\n", score, band)
			return nil
		},
	}
}

type tokenFlags struct {
	user  string
	email string
	role  string
}

func newTokenCmd() *cobra.Command {
	var flags tokenFlags
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.user == "" {
				return codeError(3, "--user is required")
			}
			if !rbac.IsKnownRole(flags.role) {
				return codeError(3, "unknown role %q (known: %v)", flags.role, rbac.Roles())
			}
			cfg, err := config.Load()
			if err != nil {
				return codeError(3, "config: %v", err)
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return codeError(3, "auth: %v", err)
			}
			token, err := m.IssueAccess(time.Now(), auth.Subject{UserID: flags.user, Email: flags.email, Role: flags.role})
			if err != nil {
				return codeError(1, "issue token: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.user, "user", "", "Subject user id")
	f.StringVar(&flags.email, "email", "", "Subject email")
	f.StringVar(&flags.role, "role", rbac.RoleAdmin, "Role claim")
	return cmd
}
