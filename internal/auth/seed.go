package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the initial admin account on first boot if no
// accounts exist. The generated password is logged once at startup and
// must be changed immediately. Returns the generated password (empty
// string if seeding was skipped).
func SeedAdmin(ctx context.Context, store Store, logger *slog.Logger) (string, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking account count: %w", err)
	}

	if count > 0 {
		logger.Info("accounts exist, skipping admin seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	salt, err := GenerateSalt()
	if err != nil {
		return "", fmt.Errorf("generating seed salt: %w", err)
	}

	admin := &Account{
		Username:     "admin",
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
		Role:         RoleAdmin,
		Enabled:      true,
		CreatedBy:    "system",
	}

	if err := store.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", "admin",
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
