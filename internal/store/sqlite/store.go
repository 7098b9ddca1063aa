package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/internal/store"
	_ "modernc.org/sqlite"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// repositories work unchanged inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Accounts() store.Accounts           { return &accountsRepo{db: s.db} }
func (s *Store) SessionTokens() store.SessionTokens { return &sessionTokensRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

const accountColumns = `id, email, password_hash, first_name, last_name,
	verified, verification_token, reset_token_hash, reset_expires_at,
	provider, provider_subject_id, failed_attempts, locked_until,
	last_login_at, two_factor_enabled, two_factor_secret, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var (
		a                 domain.Account
		passwordHash      sql.NullString
		verificationToken sql.NullString
		resetTokenHash    sql.NullString
		resetExpiresAt    sql.NullTime
		providerSubjectID sql.NullString
		lockedUntil       sql.NullTime
		lastLoginAt       sql.NullTime
		twoFactorSecret   sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.Email, &passwordHash, &a.FirstName, &a.LastName,
		&a.Verified, &verificationToken, &resetTokenHash, &resetExpiresAt,
		&a.Provider, &providerSubjectID, &a.FailedAttempts, &lockedUntil,
		&lastLoginAt, &a.TwoFactorEnabled, &twoFactorSecret, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}

	a.PasswordHash = mapNullStringPtr(passwordHash)
	a.VerificationToken = mapNullStringPtr(verificationToken)
	a.ResetTokenHash = mapNullStringPtr(resetTokenHash)
	a.ResetExpiresAt = mapNullTimePtr(resetExpiresAt)
	a.ProviderSubjectID = mapNullStringPtr(providerSubjectID)
	a.LockedUntil = mapNullTimePtr(lockedUntil)
	a.LastLoginAt = mapNullTimePtr(lastLoginAt)
	a.TwoFactorSecret = mapNullStringPtr(twoFactorSecret)
	return a, nil
}

const sessionTokenColumns = `id, account_id, token_hash, expires_at, revoked,
	ip, user_agent, created_at, updated_at`

func scanSessionToken(row interface{ Scan(...any) error }) (domain.SessionToken, error) {
	var t domain.SessionToken
	err := row.Scan(
		&t.ID, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.Revoked,
		&t.IP, &t.UserAgent, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.SessionToken{}, err
	}
	return t, nil
}
