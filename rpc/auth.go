package rpc

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RoleLiquidator must be present in a caller's token before vault_liquidate
// is accepted.
const RoleLiquidator = "liquidator"

// identity describes the authenticated caller of a mutating method.
type identity struct {
	// Subject is the bech32 address the token was issued for. Empty for the
	// static ops token.
	Subject string
	// Roles carries the role claims granted to the caller.
	Roles []string
	// Ops marks callers authenticated with the break-glass static token,
	// which bypasses subject matching.
	Ops bool
}

func (id identity) hasRole(role string) bool {
	if id.Ops {
		return true
	}
	for _, granted := range id.Roles {
		if strings.EqualFold(strings.TrimSpace(granted), role) {
			return true
		}
	}
	return false
}

// actsFor reports whether the caller may submit operations on behalf of the
// given address.
func (id identity) actsFor(address string) bool {
	if id.Ops {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(id.Subject), strings.TrimSpace(address))
}

type authClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// requireAuth authenticates the request via the static ops token or an HS256
// JWT whose subject names the acting address.
func (s *Server) requireAuth(r *http.Request) (identity, *RPCError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return identity{}, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return identity{}, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return identity{}, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}

	if s.authToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1 {
		return identity{Ops: true}, nil
	}

	if len(s.jwtSecret) == 0 {
		return identity{}, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}

	claims := &authClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return identity{}, &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return identity{}, &RPCError{Code: codeUnauthorized, Message: "token subject required"}
	}
	return identity{Subject: subject, Roles: claims.Roles}, nil
}
