package v1

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/claims-auth/internal/audit"
	"github.com/duynhne/claims-auth/internal/core/domain"
	"github.com/duynhne/claims-auth/internal/jobs"
)

// issuedToken pulls the raw token out of the captured reset email job.
func issuedToken(t *testing.T, env *testEnv) string {
	t.Helper()
	env.jobs.Wait()
	emails := env.queue.byKind(jobs.KindPasswordResetEmail)
	require.NotEmpty(t, emails)
	token := emails[len(emails)-1].Payload["token"]
	require.NotEmpty(t, token)
	return token
}

func TestResetRequestUnknownEmailIndistinguishable(t *testing.T) {
	env := newTestEnv(t, 5, activeUser("u1", "agent@claims.example"))

	// Unknown and inactive accounts get the same nil result, with the
	// hashing cost burned on the dummy path.
	require.NoError(t, env.svc.RequestPasswordReset(context.Background(), "nobody@claims.example"))

	inactive := activeUser("u2", "inactive@claims.example")
	inactive.IsActive = false
	env2 := newTestEnv(t, 5, inactive)
	require.NoError(t, env2.svc.RequestPasswordReset(context.Background(), inactive.Email))

	_, dummy := env.verifier.calls()
	assert.Equal(t, 1, dummy)
	_, dummy2 := env2.verifier.calls()
	assert.Equal(t, 1, dummy2)

	env.jobs.Wait()
	assert.Empty(t, env.queue.byKind(jobs.KindPasswordResetEmail))
}

func TestResetRequestRotatesToken(t *testing.T) {
	env := newTestEnv(t, 5, activeUser("u1", "agent@claims.example"))

	require.NoError(t, env.svc.RequestPasswordReset(context.Background(), "agent@claims.example"))
	first := issuedToken(t, env)

	require.NoError(t, env.svc.RequestPasswordReset(context.Background(), "agent@claims.example"))
	second := issuedToken(t, env)

	assert.Equal(t, 1, env.resets.unusedCount("u1"), "one live token per user")

	_, err := env.svc.ValidateResetToken(context.Background(), first)
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	resp, err := env.svc.ValidateResetToken(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
}

func TestResetValidateIsRepeatable(t *testing.T) {
	env := newTestEnv(t, 5, activeUser("u1", "agent@claims.example"))
	require.NoError(t, env.svc.RequestPasswordReset(context.Background(), "agent@claims.example"))
	token := issuedToken(t, env)

	for i := 0; i < 3; i++ {
		_, err := env.svc.ValidateResetToken(context.Background(), token)
		assert.NoError(t, err)
	}
}

func TestResetConfirmRejectsExpiredAndGarbage(t *testing.T) {
	env := newTestEnv(t, 5, activeUser("u1", "agent@claims.example"))

	err := env.svc.ConfirmPasswordReset(context.Background(), "no-such-token", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	raw, hash, err := GenerateToken()
	require.NoError(t, err)
	expired := domain.ResetTokenRow{
		ID:        "t-expired",
		UserID:    "u1",
		TokenHash: hash,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, env.resets.Replace(context.Background(), expired))

	err = env.svc.ConfirmPasswordReset(context.Background(), raw, "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestResetConfirmSwapsPasswordAndInvalidatesSessions(t *testing.T) {
	env := newTestEnv(t, 5, activeUser("u1", "agent@claims.example"))

	// Existing session from before the reset.
	resp, err := env.svc.Login(context.Background(),
		domain.LoginRequest{Email: "agent@claims.example", Password: "secret"},
		domain.SessionMeta{},
	)
	require.NoError(t, err)

	require.NoError(t, env.svc.RequestPasswordReset(context.Background(), "agent@claims.example"))
	token := issuedToken(t, env)

	time.Sleep(time.Millisecond)
	require.NoError(t, env.svc.ConfirmPasswordReset(context.Background(), token, "brand-new-pass"))

	// Prior session fell behind the cutoff.
	_, err = env.svc.Authenticate(context.Background(), resp.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	// Old password rejected, new one accepted.
	_, err = env.svc.Login(context.Background(),
		domain.LoginRequest{Email: "agent@claims.example", Password: "secret"},
		domain.SessionMeta{},
	)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	time.Sleep(time.Millisecond)
	_, err = env.svc.Login(context.Background(),
		domain.LoginRequest{Email: "agent@claims.example", Password: "brand-new-pass"},
		domain.SessionMeta{},
	)
	assert.NoError(t, err)

	// Consumed token is terminal.
	err = env.svc.ConfirmPasswordReset(context.Background(), token, "another-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	env.drain()
	assert.Len(t, env.sink.byAction(audit.ActionPasswordResetCompleted), 1)
}

func TestResetConfirmConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t, 5, activeUser("u1", "agent@claims.example"))
	require.NoError(t, env.svc.RequestPasswordReset(context.Background(), "agent@claims.example"))
	token := issuedToken(t, env)

	passwords := []string{"winner-password-a", "winner-password-b"}
	errs := make([]error, len(passwords))

	var wg sync.WaitGroup
	for i := range passwords {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.svc.ConfirmPasswordReset(context.Background(), token, passwords[i])
		}(i)
	}
	wg.Wait()

	var winners []string
	for i, err := range errs {
		if err == nil {
			winners = append(winners, passwords[i])
		} else {
			assert.ErrorIs(t, err, ErrInvalidResetToken)
		}
	}
	require.Len(t, winners, 1, "exactly one confirm succeeds")

	// Password matches only the winner's value.
	assert.Equal(t, "hash:"+winners[0], env.users.get("u1").PasswordHash)
}
