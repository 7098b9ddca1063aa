package service

import (
	"context"
	"testing"
	"time"

	"github.com/mooncress/authcore/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestVerifyHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seeded := env.seedVerifiedAccount(t, "alice@example.com", "Str0ng!Pass")

	account, err := env.Credentials.Verify(ctx, "Alice@Example.COM ", "Str0ng!Pass")
	require.NoError(t, err)
	require.Equal(t, seeded.ID, account.ID)
}

func TestVerifyUnknownEmailIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedVerifiedAccount(t, "known@example.com", "Str0ng!Pass")

	_, errUnknown := env.Credentials.Verify(ctx, "ghost@example.com", "whatever")
	_, errWrongPass := env.Credentials.Verify(ctx, "known@example.com", "wrong")

	require.ErrorIs(t, errUnknown, domain.ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPass, domain.ErrInvalidCredentials)
	require.Equal(t, errUnknown.Error(), errWrongPass.Error())
}

func TestVerifyUnverifiedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account, err := env.Accounts.Register(ctx, "new@example.com", "Str0ng!Pass", "New", "User")
	require.NoError(t, err)

	_, err = env.Credentials.Verify(ctx, "new@example.com", "Str0ng!Pass")
	require.ErrorIs(t, err, domain.ErrEmailUnverified)

	// Wrong password on an unverified account still reads as bad
	// credentials, not as an unverified hint.
	_, err = env.Credentials.Verify(ctx, "new@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_ = account
}

func TestVerifyLocksAfterThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedVerifiedAccount(t, "victim@example.com", "Str0ng!Pass")

	// Every failed attempt reads the same, including the one that trips
	// the lock.
	for i := 0; i < DefaultLockoutThreshold; i++ {
		_, err := env.Credentials.Verify(ctx, "victim@example.com", "wrong")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	// Correct password no longer helps.
	_, err := env.Credentials.Verify(ctx, "victim@example.com", "Str0ng!Pass")
	require.ErrorIs(t, err, domain.ErrAccountLocked)

	// And the locked failure does not touch the counter.
	account, err := env.Store.Accounts().FindByEmail(ctx, "victim@example.com")
	require.NoError(t, err)
	require.Equal(t, DefaultLockoutThreshold, account.FailedAttempts)
}

func TestVerifyBelowThresholdStillWorks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedVerifiedAccount(t, "slips@example.com", "Str0ng!Pass")

	for i := 0; i < DefaultLockoutThreshold-1; i++ {
		_, err := env.Credentials.Verify(ctx, "slips@example.com", "wrong")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	account, err := env.Credentials.Verify(ctx, "slips@example.com", "Str0ng!Pass")
	require.NoError(t, err)
	require.Equal(t, "slips@example.com", account.Email)
}

func TestCompleteLoginResetsLockoutState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seeded := env.seedVerifiedAccount(t, "reset@example.com", "Str0ng!Pass")

	_, err := env.Credentials.Verify(ctx, "reset@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	require.NoError(t, env.Credentials.CompleteLogin(ctx, seeded.ID))

	account, err := env.Store.Accounts().FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.Zero(t, account.FailedAttempts)
	require.Nil(t, account.LockedUntil)
	require.NotNil(t, account.LastLoginAt)
	require.WithinDuration(t, time.Now(), *account.LastLoginAt, 5*time.Second)
}

func TestVerifyFederatedOnlyAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Federation.Resolve(ctx, domain.FederatedProfile{
		Provider:  domain.ProviderGoogle,
		SubjectID: "goog-1",
		Email:     "fedonly@example.com",
		FirstName: "Fed",
		LastName:  "Only",
	})
	require.NoError(t, err)

	_, err = env.Credentials.Verify(ctx, "fedonly@example.com", "anything")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
