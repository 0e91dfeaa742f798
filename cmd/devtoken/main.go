// AngelaMos | 2026
// main.go

// Command devtoken mints access tokens for local development. Production
// tokens come from the identity service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/carterperez-dev/coursegate/internal/audit"
	"github.com/carterperez-dev/coursegate/internal/auth"
	"github.com/carterperez-dev/coursegate/internal/config"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/principal"
	"github.com/carterperez-dev/coursegate/internal/user"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config file")
		genKeys    = flag.Bool("gen-keys", false, "write a fresh ES256 key pair first")
		userID     = flag.String("user", "", "token subject")
		role       = flag.String("role", "USER", "USER or ADMIN")
		email      = flag.String("email", "", "register the subject with this email")
		name       = flag.String("name", "", "display name used with -email")
	)
	flag.Parse()

	if err := run(*configPath, *genKeys, *userID, *role, *email, *name); err != nil {
		slog.Error("devtoken failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, genKeys bool, userID, roleName, email, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if genKeys {
		if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
			return err
		}
		slog.Info("key pair written",
			"private", cfg.JWT.PrivateKeyPath,
			"public", cfg.JWT.PublicKeyPath,
		)
		if userID == "" {
			return nil
		}
	}

	role, err := principal.ParseRole(roleName)
	if err != nil {
		return err
	}
	p := principal.New(userID, role)
	if err := p.Validate(); err != nil {
		return fmt.Errorf("-user is required: %w", err)
	}

	if email != "" {
		if err := ensureUser(cfg.Database, p, email, name); err != nil {
			return err
		}
	}

	manager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}

	token, err := manager.CreateAccessToken(p)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

// ensureUser registers the subject so grants against it succeed. An ADMIN
// token also promotes the stored role.
func ensureUser(cfg config.DatabaseConfig, p principal.Principal, email, name string) error {
	ctx := context.Background()

	db, err := core.NewDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exits next

	svc := user.NewService(user.NewRepository(db.DB), audit.NewLogSink(slog.Default()))
	if _, err := svc.Ensure(ctx, p.UserID, email, name); err != nil {
		return err
	}

	if p.IsAdmin() {
		bootstrap := principal.New("devtoken", principal.RoleAdmin)
		if _, err := svc.UpdateUserRole(ctx, bootstrap, p.UserID, p.Role.String()); err != nil {
			return err
		}
	}

	slog.Info("user registered", "user_id", p.UserID, "role", p.Role.String())
	return nil
}
