package service

import (
	"context"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// IdentityClaims are the session token claims; the subject is the auth user id.
type IdentityClaims struct {
	Email string `json:"email,omitempty"`
	jwtv5.RegisteredClaims
}

// NewIdentityClaims is the claims factory for the jwt middleware.
func NewIdentityClaims() jwtv5.Claims {
	return &IdentityClaims{}
}

// identityResolver turns verified claims into a biz.Identity.
type identityResolver struct {
	issuer string
}

func newIdentityResolver(c *conf.Bootstrap) *identityResolver {
	r := &identityResolver{}
	if c != nil && c.Auth != nil {
		r.issuer = c.Auth.Issuer
	}
	return r
}

func (r *identityResolver) fromContext(ctx context.Context) (biz.Identity, error) {
	claims, ok := jwt.FromContext(ctx)
	if !ok {
		return biz.Identity{}, creditErrors.ErrUnauthenticated()
	}
	ic, ok := claims.(*IdentityClaims)
	if !ok || ic.Subject == "" {
		return biz.Identity{}, creditErrors.ErrUnauthenticated()
	}
	if r.issuer != "" && ic.Issuer != r.issuer {
		return biz.Identity{}, creditErrors.ErrUnauthenticated()
	}
	return biz.Identity{UserID: ic.Subject, Email: ic.Email}, nil
}
