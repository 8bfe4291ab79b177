package auth

import (
	"context"
	"database/sql"
)

// EnsureUser upserts a local account. The gateway seeds the admin account
// from config at boot; everything else arrives via the external user
// provisioning surface.
func EnsureUser(ctx context.Context, db *sql.DB, id, username, passwordHash, role string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, role)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET username=EXCLUDED.username, role=EXCLUDED.role`,
		id, username, passwordHash, role)
	return err
}
