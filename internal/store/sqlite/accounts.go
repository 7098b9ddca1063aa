package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/store"
)

type accountsRepo struct {
	db dbtx
}

func (r *accountsRepo) FindByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`,
		domain.NormalizeEmail(email))
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) FindByProviderIdentity(ctx context.Context, provider, subjectID string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE provider = ? AND provider_subject_id = ?`,
		provider, subjectID)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) FindByVerificationToken(ctx context.Context, tokenHash string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE verification_token = ?`, tokenHash)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) FindByResetToken(ctx context.Context, tokenHash string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE reset_token_hash = ?`, tokenHash)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, password_hash, first_name, last_name,
			verified, verification_token, provider, provider_subject_id,
			two_factor_enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, domain.NormalizeEmail(a.Email), mapOptionalString(a.PasswordHash),
		a.FirstName, a.LastName,
		a.Verified, mapOptionalString(a.VerificationToken),
		a.Provider, mapOptionalString(a.ProviderSubjectID),
		a.TwoFactorEnabled, now, now,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *accountsRepo) RegisterFailedAttempt(ctx context.Context, id string, threshold int, lockUntil time.Time) (int, error) {
	// Single conditional UPDATE so two racing failures cannot under-count;
	// RETURNING hands back the post-increment value without a second trip.
	row := r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE WHEN failed_attempts + 1 >= ? THEN ? ELSE locked_until END,
		    updated_at = ?
		WHERE id = ?
		RETURNING failed_attempts`,
		threshold, lockUntil.UTC(), time.Now().UTC(), id,
	)

	var attempts int
	if err := row.Scan(&attempts); err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *accountsRepo) CompleteLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET failed_attempts = 0, locked_until = NULL, last_login_at = ?, updated_at = ?
		WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id,
	)
	return err
}

func (r *accountsRepo) SetVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET verified = 1, verification_token = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}

func (r *accountsRepo) UpdatePassword(ctx context.Context, id string, hash string) error {
	// One statement: new hash, reset fields gone, lockout cleared.
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = ?, reset_token_hash = NULL, reset_expires_at = NULL,
		    failed_attempts = 0, locked_until = NULL, updated_at = ?
		WHERE id = ?`,
		hash, time.Now().UTC(), id,
	)
	return err
}

func (r *accountsRepo) SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET reset_token_hash = ?, reset_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		tokenHash, expiresAt.UTC(), time.Now().UTC(), id,
	)
	return err
}

func (r *accountsRepo) SetTwoFactor(ctx context.Context, id string, secret string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET two_factor_enabled = 1, two_factor_secret = ?, updated_at = ?
		WHERE id = ?`,
		secret, time.Now().UTC(), id,
	)
	return err
}

func (r *accountsRepo) DisableTwoFactor(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET two_factor_enabled = 0, two_factor_secret = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return err
}
