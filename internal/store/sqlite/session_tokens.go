package sqlite

import (
	"context"
	"time"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/store"
)

type sessionTokensRepo struct {
	db dbtx
}

func (r *sessionTokensRepo) Create(ctx context.Context, t domain.SessionToken) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_tokens (
			id, account_id, token_hash, expires_at, revoked,
			ip, user_agent, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.TokenHash, t.ExpiresAt.UTC(), t.Revoked,
		t.IP, t.UserAgent, now, now,
	)
	return err
}

func (r *sessionTokensRepo) FindByFingerprint(ctx context.Context, tokenHash string) (domain.SessionToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionTokenColumns+` FROM session_tokens WHERE token_hash = ?`, tokenHash)
	t, err := scanSessionToken(row)
	if err != nil {
		return domain.SessionToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *sessionTokensRepo) Revoke(ctx context.Context, tokenHash string) error {
	// Idempotent: zero rows affected is still success.
	_, err := r.db.ExecContext(ctx, `
		UPDATE session_tokens SET revoked = 1, updated_at = ?
		WHERE token_hash = ? AND revoked = 0`,
		time.Now().UTC(), tokenHash,
	)
	return err
}

func (r *sessionTokensRepo) RevokeByID(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE session_tokens SET revoked = 1, updated_at = ?
		WHERE id = ? AND account_id = ? AND revoked = 0`,
		time.Now().UTC(), id, accountID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionTokensRepo) RevokeAllForAccount(ctx context.Context, accountID string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE session_tokens SET revoked = 1, updated_at = ?
		WHERE account_id = ? AND revoked = 0 AND expires_at > ?`,
		now, accountID, now,
	)
	return err
}

func (r *sessionTokensRepo) ListActiveForAccount(ctx context.Context, accountID string) ([]domain.SessionToken, error) {
	now := time.Now().UTC()
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionTokenColumns+` FROM session_tokens
		WHERE account_id = ? AND revoked = 0 AND expires_at > ?
		ORDER BY created_at DESC`,
		accountID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionToken
	for rows.Next() {
		t, err := scanSessionToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *sessionTokensRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_tokens WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
