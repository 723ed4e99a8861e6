package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"listou/internal/apperr"
	"listou/internal/database"
	"listou/internal/kvstore"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func newTestService(t *testing.T) (*Service, *kvstore.Store) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "listou.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	kv := kvstore.NewStore(db.SQL, nil)
	s := NewService(NewUserRepository(db.SQL), NewTokenManager(testSecret, time.Hour), kv, nil)
	s.hashCost = bcrypt.MinCost
	return s, kv
}

func TestSignupThenLogin(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	created, err := s.Signup(ctx, "  Bob@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", created.Email)
	assert.Equal(t, "bob", created.DisplayName())

	require.NoError(t, s.Logout(ctx))
	_, ok := s.Current(ctx)
	assert.False(t, ok)

	logged, err := s.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, logged.ID)
}

func TestSignupDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	_, err := s.Signup(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	_, err = s.Signup(ctx, "BOB@example.com", "other-pass")

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Equal(t, MsgEmailExists, apperr.UserMessage(err))
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	_, err := s.Signup(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "bob@example.com", "wrong-pass"},
		{"unknown email", "alice@example.com", "secret1"},
		{"malformed email", "bob", "secret1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Login(ctx, tt.email, tt.password)
			assert.Equal(t, MsgInvalidCredentials, apperr.UserMessage(err))
		})
	}
}

func TestSignupValidation(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Signup(context.Background(), "not-an-email", "secret1")
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	_, err = s.Signup(context.Background(), "bob@example.com", "123")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestService(t)
	created, err := s.Signup(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	restarted := NewService(s.users, s.tokens, kv, nil)
	current, ok := restarted.Current(ctx)

	require.True(t, ok)
	assert.Equal(t, created, current)
}

func TestMalformedOrExpiredSessionReadsAsLoggedOut(t *testing.T) {
	ctx := context.Background()
	s, kv := newTestService(t)

	require.NoError(t, kv.Set(ctx, kvstore.KeyUser, "{not json"))
	_, ok := NewService(s.users, s.tokens, kv, nil).Current(ctx)
	assert.False(t, ok)

	expired := NewTokenManager(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := expired.Issue(Identity{ID: "u1", Email: "bob@example.com"})
	require.NoError(t, err)
	require.NoError(t, kv.SetJSON(ctx, kvstore.KeyUser, session{Identity: Identity{ID: "u1"}, Token: token}))

	_, ok = NewService(s.users, s.tokens, kv, nil).Current(ctx)
	assert.False(t, ok)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	token, err := NewTokenManager(testSecret, time.Hour).Issue(Identity{ID: "u1", Email: "a@b.c"})
	require.NoError(t, err)

	_, err = NewTokenManager("another-secret-that-is-long-enough", time.Hour).Parse(token)
	assert.Error(t, err)

	id, err := NewTokenManager(testSecret, time.Hour).Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u1", Email: "a@b.c"}, id)
}
