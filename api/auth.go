package api

import (
	"errors"
	"strings"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

// Auth validates incoming JWT tokens issued by the auth collaborator. The
// verified subject claim is the owner scope for every repository call.
type Auth struct {
	jwks     *keyfunc.JWKS
	audience string
	issuer   string
	secret   []byte

	parser *jwt.Parser
}

// NewAuth creates an Auth validating RS256 tokens against the given JWKS.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	return &Auth{
		jwks:     jwks,
		audience: audience,
		issuer:   issuer,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
	}
}

// NewLocalAuth creates an Auth validating HS256 tokens with a shared secret.
// Used for local development and tests.
func NewLocalAuth(secret []byte, audience, issuer string) *Auth {
	if len(secret) == 0 {
		panic("api.NewLocalAuth: empty secret")
	}
	return &Auth{
		secret:   secret,
		audience: audience,
		issuer:   issuer,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// UserIDFromAuthHeader extracts the verified user identifier from an
// Authorization header value.
func (a *Auth) UserIDFromAuthHeader(header string) (string, error) {
	token, err := bearerToken(header)
	if err != nil {
		return "", err
	}

	parsed, err := a.parser.Parse(token, a.keyFor)
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	if a.audience != "" && !claims.VerifyAudience(a.audience, true) {
		return "", errors.New("invalid audience")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return "", errors.New("invalid issuer")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

func (a *Auth) keyFor(t *jwt.Token) (any, error) {
	if a.secret != nil {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	}
	if a.jwks == nil {
		return nil, errors.New("jwks not configured")
	}
	return a.jwks.Keyfunc(t)
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingAuthorization
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", errBadAuthorization
	}
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}
