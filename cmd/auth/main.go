package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/pkg/postgres"
)

// auth is a CLI tool for managing author API keys stored in PostgreSQL.
//
// Usage:
//
//	auth create  --name "Ada" --email ada@example.com [--admin] [--expires-in 720h]
//	auth revoke  --key <raw-key>
//	auth list
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.Database.MigrateOnBoot {
		if err := store.Migrate(db.DB); err != nil {
			slog.Error("failed to migrate", "error", err)
			os.Exit(1)
		}
	}

	validator := apikey.NewValidator(db)
	switch args[0] {
	case "create":
		err = cmdCreate(ctx, validator, args[1:])
	case "revoke":
		err = cmdRevoke(ctx, validator, args[1:])
	case "list":
		err = cmdList(ctx, validator)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", args[0], err)
		os.Exit(1)
	}
}

func cmdCreate(ctx context.Context, v *apikey.Validator, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "author name")
	email := fs.String("email", "", "author email")
	admin := fs.Bool("admin", false, "grant admin rights")
	expiresIn := fs.Duration("expires-in", 0, "expiry duration, e.g. 720h (optional)")
	fs.Parse(args)

	if *name == "" || *email == "" {
		return errors.New("--name and --email are required")
	}

	var expiresAt *time.Time
	if *expiresIn > 0 {
		t := time.Now().Add(*expiresIn)
		expiresAt = &t
	}

	key, err := v.CreateKey(ctx, *name, *email, *admin, expiresAt)
	if err != nil {
		return err
	}

	fmt.Println("API key created. Store it now, it cannot be shown again.")
	fmt.Println()
	fmt.Printf("  Key:     %s\n", key)
	fmt.Printf("  Author:  %s <%s>\n", *name, *email)
	fmt.Printf("  Admin:   %t\n", *admin)
	if expiresAt != nil {
		fmt.Printf("  Expires: %s\n", expiresAt.Format(time.RFC3339))
	} else {
		fmt.Println("  Expires: never")
	}
	return nil
}

func cmdRevoke(ctx context.Context, v *apikey.Validator, args []string) error {
	fs := flag.NewFlagSet("revoke", flag.ExitOnError)
	key := fs.String("key", "", "raw api key to revoke")
	fs.Parse(args)

	if *key == "" {
		return errors.New("--key is required")
	}
	if err := v.RevokeKey(ctx, *key); err != nil {
		return err
	}
	fmt.Println("API key revoked.")
	return nil
}

func cmdList(ctx context.Context, v *apikey.Validator) error {
	keys, err := v.ListKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No active API keys.")
		return nil
	}

	fmt.Printf("%-6s  %-20s  %-30s  %-5s  %s\n", "ID", "Author", "Email", "Admin", "Expires")
	for _, k := range keys {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Printf("%-6d  %-20s  %-30s  %-5t  %s\n", k.ID, k.AuthorName, k.AuthorEmail, k.IsAdmin, expires)
	}
	fmt.Printf("\nTotal: %d active key(s)\n", len(keys))
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: auth [-config path] <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  create   Create an API key for an author")
	fmt.Fprintln(os.Stderr, "  revoke   Revoke an existing API key")
	fmt.Fprintln(os.Stderr, "  list     List active API keys")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Examples:")
	fmt.Fprintln(os.Stderr, `  auth create --name "Ada" --email ada@example.com --admin --expires-in 720h`)
	fmt.Fprintln(os.Stderr, `  auth revoke --key "abc123..."`)
	fmt.Fprintln(os.Stderr, `  auth list`)
}
