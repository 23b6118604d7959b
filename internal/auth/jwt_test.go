package auth

import (
	"testing"
	"time"

	"collabdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	user := &models.User{ID: 42, Username: "alice", Role: models.RoleManager}
	token, err := v.IssueToken(user, "ACME")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), identity.UserID)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, "ACME", identity.CompanyCode)
	assert.Equal(t, models.RoleManager, identity.Role)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v := NewVerifier("test-secret", -time.Minute)

	token, err := v.IssueToken(&models.User{ID: 1, Username: "bob"}, "ACME")
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewVerifier("secret-a", time.Hour)
	verifier := NewVerifier("secret-b", time.Hour)

	token, err := issuer.IssueToken(&models.User{ID: 1, Username: "bob"}, "ACME")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewVerifier("test-secret", time.Hour)

	for _, credential := range []string{"", "not-a-token", "a.b.c"} {
		_, err := v.Verify(credential)
		assert.ErrorIs(t, err, ErrInvalidToken, "credential %q", credential)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
