package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nerrad567/garage-core/internal/infrastructure/config"
)

const (
	seedPasswordBytes = 16
	seedAdminUsername = "admin"
)

// Bootstrap makes sure an admin account exists.
//
// When cfg names a username and password, that account is created as an
// admin unless the username is already taken. Otherwise, if no admin
// exists, an "admin" account is created with a random password that is
// logged once and returned. An empty return means nothing was generated.
func Bootstrap(ctx context.Context, repo UserRepository, cfg config.BootstrapAdminConfig, logger *slog.Logger) (string, error) {
	if cfg.Username != "" && cfg.Password != "" {
		return "", ensureConfiguredAdmin(ctx, repo, cfg, logger)
	}

	admins, err := repo.CountByRole(ctx, RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("checking admin count: %w", err)
	}
	if admins > 0 {
		logger.Info("admin exists, skipping bootstrap")
		return "", nil
	}

	raw := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating bootstrap password: %w", err)
	}
	password := hex.EncodeToString(raw)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing bootstrap password: %w", err)
	}
	if err := repo.Create(ctx, &User{Username: seedAdminUsername, PasswordHash: hash, Role: RoleAdmin}); err != nil {
		return "", fmt.Errorf("creating bootstrap admin: %w", err)
	}

	logger.Warn("bootstrap admin account created",
		"username", seedAdminUsername,
		"password", password,
		"action_required", "change this password immediately",
	)
	return password, nil
}

func ensureConfiguredAdmin(ctx context.Context, repo UserRepository, cfg config.BootstrapAdminConfig, logger *slog.Logger) error {
	_, err := repo.GetByUsername(ctx, cfg.Username)
	if err == nil {
		logger.Info("bootstrap admin already present", "username", cfg.Username)
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("looking up bootstrap admin: %w", err)
	}

	hash, err := HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("hashing bootstrap password: %w", err)
	}
	if err := repo.Create(ctx, &User{Username: cfg.Username, PasswordHash: hash, Role: RoleAdmin}); err != nil {
		return fmt.Errorf("creating bootstrap admin: %w", err)
	}

	logger.Info("bootstrap admin created", "username", cfg.Username)
	return nil
}
