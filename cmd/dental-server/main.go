package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dentaldesk/dental/internal/config"
	"github.com/dentaldesk/dental/internal/domain/account"
	"github.com/dentaldesk/dental/internal/domain/profile"
	"github.com/dentaldesk/dental/internal/platform/db"
	"github.com/dentaldesk/dental/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dental-server",
		Short: "Dental clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(accountCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationFiles returns the embedded migrations unless dir overrides them.
func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationFiles(dir))
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationFiles(dir))
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage logins",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a profile with a password login",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("ACCOUNT_PASSWORD")
			}
			if email == "" || name == "" {
				return fmt.Errorf("--email and --name are required")
			}
			if password == "" {
				return fmt.Errorf("--password or ACCOUNT_PASSWORD is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			profileRepo := profile.NewRepoPG(pool)
			profiles := profile.NewService(profileRepo, cfg.Location())
			accounts := account.NewService(account.NewRepoPG(pool), profileRepo, nil, 0)

			id, err := createAccount(ctx, profiles, accounts, name, email, role, password)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s account %s (%s)\n", role, id, email)
			return nil
		},
	}
	createCmd.Flags().String("email", "", "Login email")
	createCmd.Flags().String("name", "", "Full name")
	createCmd.Flags().String("role", "admin", "Role: admin, dentist, staff or patient")
	createCmd.Flags().String("password", "", "Initial password (or set ACCOUNT_PASSWORD)")
	cmd.AddCommand(createCmd)

	return cmd
}

type profileCreator interface {
	Create(ctx context.Context, p *profile.Profile) error
}

type passwordSetter interface {
	SetPassword(ctx context.Context, userID uuid.UUID, email, password string) error
}

// createAccount registers the profile and its login. The password is
// checked first so a rejected password leaves no orphan profile.
func createAccount(ctx context.Context, profiles profileCreator, accounts passwordSetter, name, email, role, password string) (uuid.UUID, error) {
	if len(password) < account.MinPasswordLength || len(password) > account.MaxPasswordLength {
		return uuid.Nil, fmt.Errorf("password must be %d to %d characters", account.MinPasswordLength, account.MaxPasswordLength)
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !profile.IsValidRole(role) {
		return uuid.Nil, fmt.Errorf("unknown role %q", role)
	}
	p := &profile.Profile{FullName: name, Email: email, Role: role}
	if err := profiles.Create(ctx, p); err != nil {
		return uuid.Nil, fmt.Errorf("create profile: %w", err)
	}
	if err := accounts.SetPassword(ctx, p.ID, p.Email, password); err != nil {
		return uuid.Nil, fmt.Errorf("set password: %w", err)
	}
	return p.ID, nil
}
