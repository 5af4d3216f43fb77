package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

var ErrInvalidToken = errors.New("invalid or expired access token")

func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, _, err := jwtauth.FromContext(r.Context())

			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.Unauthorized(w, ErrInvalidToken.Error())
				return
			}

			claims, err := token.AsMap(r.Context())
			if err != nil {
				response.Unauthorized(w, ErrInvalidToken.Error())
				return
			}
			tokenType, ok := claims["type"].(string)
			if tokenType != jwt.TokenTypeAccess || !ok {
				response.Unauthorized(w, ErrInvalidToken.Error())
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// ActorFromContext builds the acting user from verified token claims.
// site_id is optional; user_id and role are not.
func ActorFromContext(ctx context.Context) (payroll.Actor, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return payroll.Actor{}, err
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return payroll.Actor{}, ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return payroll.Actor{}, ErrInvalidToken
	}
	siteID, _ := claims["site_id"].(string)

	return payroll.Actor{UserID: userID, Role: role, SiteID: siteID}, nil
}
