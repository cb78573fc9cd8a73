package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/homescan/internal/model"
)

func TestGate_Authenticate(t *testing.T) {
	tokens := NewTokenService("s3cret", 7)
	gate := NewGate(tokens)

	token, err := tokens.Issue("acc-1", "a@x.com", model.RoleITN, "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"canonical prefix", "Bearer " + token, nil},
		{"lowercase prefix", "bearer " + token, nil},
		{"uppercase prefix", "BEARER " + token, nil},
		{"empty header", "", ErrMissingBearer},
		{"basic scheme", "Basic dXNlcjpwYXNz", ErrMissingBearer},
		{"prefix only", "Bearer ", ErrMissingBearer},
		{"no separator", "Bearer" + token, ErrMissingBearer},
		{"garbage token", "Bearer not.a.token", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := gate.Authenticate(tt.header)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrUnauthorized, "error should also match ErrUnauthorized")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "acc-1", claims.AccountID())
			assert.Equal(t, model.RoleITN, claims.Role)
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := &Claims{Role: model.RoleAdmin}
	user := &Claims{Role: model.RoleUser}

	assert.NoError(t, RequireRole(admin, model.RoleAdmin))
	assert.ErrorIs(t, RequireRole(user, model.RoleITN, model.RoleAdmin), ErrForbidden)
	assert.ErrorIs(t, RequireRole(nil, model.RoleAdmin), ErrUnauthorized)
}
