// Command grantrole grants or revokes a role for a user by email.
// It exists to bootstrap the first SuperAdmin, since the role matrix
// page itself requires a SuperAdmin session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"chitieu/internal/cli"
)

func main() {
	email := flag.String("email", "", "user email address")
	role := flag.String("role", "SuperAdmin", "role name to grant or revoke")
	revoke := flag.Bool("revoke", false, "revoke the role instead of granting it")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: grantrole -email user@example.com [-role SuperAdmin] [-revoke]")
		os.Exit(2)
	}

	logger := cli.SetupLogger()
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx := context.Background()

	user, err := repo.GetUserByEmail(ctx, *email)
	if err != nil {
		logger.Error("User lookup failed", "error", err, "email", *email)
		os.Exit(1)
	}

	r, err := repo.GetRoleByName(ctx, *role)
	if err != nil {
		logger.Error("Role lookup failed", "error", err, "role", *role)
		os.Exit(1)
	}

	if *revoke {
		if err := repo.RevokeRole(ctx, user.ID, r.ID); err != nil {
			logger.Error("Revoke failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Role revoked", "email", user.Email, "role", r.Name)
		return
	}

	if err := repo.GrantRole(ctx, user.ID, r.ID); err != nil {
		logger.Error("Grant failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Role granted", "email", user.Email, "role", r.Name)
}
