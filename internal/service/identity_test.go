package service

import (
	"context"
	"testing"

	"credit-service/internal/conf"

	"github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityResolver(t *testing.T) {
	r := newIdentityResolver(&conf.Bootstrap{Auth: &conf.Auth{Issuer: "https://clerk.example.com"}})

	t.Run("no claims", func(t *testing.T) {
		_, err := r.fromContext(context.Background())
		assert.Error(t, err)
	})

	t.Run("valid claims", func(t *testing.T) {
		ctx := jwt.NewContext(context.Background(), &IdentityClaims{
			Email: "a@example.com",
			RegisteredClaims: jwtv5.RegisteredClaims{
				Subject: "user_1",
				Issuer:  "https://clerk.example.com",
			},
		})
		id, err := r.fromContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user_1", id.UserID)
		assert.Equal(t, "a@example.com", id.Email)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		ctx := jwt.NewContext(context.Background(), &IdentityClaims{
			RegisteredClaims: jwtv5.RegisteredClaims{Subject: "user_1", Issuer: "https://evil.example.com"},
		})
		_, err := r.fromContext(ctx)
		assert.Error(t, err)
	})

	t.Run("empty subject", func(t *testing.T) {
		ctx := jwt.NewContext(context.Background(), &IdentityClaims{})
		_, err := r.fromContext(ctx)
		assert.Error(t, err)
	})
}
