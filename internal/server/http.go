package server

import (
	"crypto/rsa"
	"fmt"

	v1 "credit-service/api/credit/v1"
	"credit-service/internal/conf"
	"credit-service/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer builds the public, internal and webhook HTTP surface.
func NewHTTPServer(
	c *conf.Bootstrap,
	credit *service.CreditService,
	account *service.AccountService,
	webhook *service.WebhookService,
	logger log.Logger,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			tracing.Server(),
			selector.Server(
				jwt.Server(
					sessionKeyFunc(c, log.NewHelper(logger)),
					jwt.WithSigningMethod(jwtv5.SigningMethodRS256),
					jwt.WithClaims(service.NewIdentityClaims),
				),
			).Prefix(v1.AccountOperationPrefix).Build(),
		),
	}
	if c.Server != nil && c.Server.HTTP != nil {
		if c.Server.HTTP.Network != "" {
			opts = append(opts, http.Network(c.Server.HTTP.Network))
		}
		if c.Server.HTTP.Addr != "" {
			opts = append(opts, http.Address(c.Server.HTTP.Addr))
		}
		if c.Server.HTTP.Timeout != nil {
			opts = append(opts, http.Timeout(c.Server.HTTP.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)
	v1.RegisterCreditHTTPServer(srv, credit)
	v1.RegisterAccountHTTPServer(srv, account)

	r := srv.Route("/")
	r.POST("/webhooks/dodo", webhook.HandleDodo)
	r.GET("/healthz", func(ctx http.Context) error {
		return ctx.JSON(200, map[string]string{"status": "ok"})
	})
	srv.Handle("/metrics", promhttp.Handler())
	return srv
}

// sessionKeyFunc verifies end-user session tokens with the configured RS256 key.
func sessionKeyFunc(c *conf.Bootstrap, logger *log.Helper) jwtv5.Keyfunc {
	var (
		key *rsa.PublicKey
		err error
	)
	if c.Auth != nil && c.Auth.JWTPublicKey != "" {
		key, err = jwtv5.ParseRSAPublicKeyFromPEM([]byte(c.Auth.JWTPublicKey))
		if err != nil {
			logger.Errorf("invalid auth.jwt_public_key, end-user API disabled: %v", err)
		}
	} else {
		logger.Warn("auth.jwt_public_key not configured, end-user API disabled")
	}

	return func(*jwtv5.Token) (interface{}, error) {
		if key == nil {
			return nil, fmt.Errorf("session key not configured")
		}
		return key, nil
	}
}
