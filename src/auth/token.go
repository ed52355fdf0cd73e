// Package auth resolves and verifies the access token attached to an
// incoming request. Token issuance and user management live outside this
// service; the rest of the process trusts the user id returned here.
package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"
)

const bearerPrefix = "Bearer "

var (
	// ErrNoToken means the request carried no usable credential.
	ErrNoToken = errors.New("no access token in request")

	// ErrInvalidToken means the credential failed verification.
	ErrInvalidToken = errors.New("invalid access token")
)

// TokenFromRequest resolves the access token for a request. An
// Authorization bearer header is always honored and always wins. Browser
// WebSocket clients cannot set custom headers on upgrade requests, so for
// paths under hubPrefix only, a token in the access_token query parameter
// is accepted as a fallback. Non-hub paths never accept the query
// parameter.
func TokenFromRequest(ctx *fasthttp.RequestCtx, hubPrefix string) string {
	if tok := BearerToken(string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))); tok != "" {
		return tok
	}
	// Segment match: "/hubs" must not cover "/hubsfoo".
	if path := string(ctx.Path()); path == hubPrefix || strings.HasPrefix(path, hubPrefix+"/") {
		return string(ctx.QueryArgs().Peek("access_token"))
	}
	return ""
}

// BearerToken extracts the token from an Authorization header value, or
// returns "" when the header is absent or not a bearer credential.
func BearerToken(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

// Claims is the token claim set this service consumes. The subject claim
// carries the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier checks HMAC-signed access tokens issued by the identity
// collaborator.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify validates the token signature and time claims and returns the
// authenticated user id. A structurally valid token without a subject is
// rejected.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrNoToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
