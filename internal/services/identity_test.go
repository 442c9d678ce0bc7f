package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubetrack-backend/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestIdentityProvider_Verify(t *testing.T) {
	p := NewIdentityProvider(testSecret, nil, nil)
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		wantID  string
		wantMsg string
	}{
		{
			name:   "sub claim",
			token:  signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "email": "a@b.c", "exp": future}),
			wantID: "u1",
		},
		{
			name:   "user_id claim",
			token:  signToken(t, testSecret, jwt.MapClaims{"user_id": "u2", "exp": future}),
			wantID: "u2",
		},
		{
			name:    "expired",
			token:   signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()}),
			wantMsg: "Token has expired",
		},
		{
			name:    "wrong secret",
			token:   signToken(t, "other", jwt.MapClaims{"sub": "u1", "exp": future}),
			wantMsg: "Invalid token",
		},
		{
			name:    "no subject",
			token:   signToken(t, testSecret, jwt.MapClaims{"email": "a@b.c", "exp": future}),
			wantMsg: "Invalid user ID in token",
		},
		{
			name:    "garbage",
			token:   "not-a-jwt",
			wantMsg: "Invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := p.Verify(tt.token)
			if tt.wantMsg != "" {
				var unauth *UnauthorizedError
				require.ErrorAs(t, err, &unauth)
				assert.Equal(t, tt.wantMsg, unauth.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, user.ID)
		})
	}
}

func TestIdentityProvider_SignInSignOutNotifies(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	p := NewIdentityProvider(testSecret, pub, nil)

	var seen []*models.User
	unsubscribe := p.Subscribe(func(u *models.User) { seen = append(seen, u) })

	_, ok := p.Current()
	assert.False(t, ok)

	token := signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "email": "a@b.c", "exp": time.Now().Add(time.Hour).Unix()})
	user, err := p.SignIn(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", user.Email)

	current, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", current.ID)

	p.SignOut(ctx)
	_, ok = p.Current()
	assert.False(t, ok)

	require.Len(t, seen, 2)
	assert.Equal(t, "u1", seen[0].ID)
	assert.Nil(t, seen[1])
	assert.Len(t, pub.msgs, 2)
	assert.Equal(t, models.EventSessionChanged, pub.msgs[0].Type)

	unsubscribe()
	_, err = p.SignIn(ctx, token)
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestIdentityProvider_FailedSignInKeepsSession(t *testing.T) {
	ctx := context.Background()
	p := NewIdentityProvider(testSecret, nil, nil)
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()})
	_, err := p.SignIn(ctx, token)
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "bad")
	require.Error(t, err)

	current, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", current.ID)
}
