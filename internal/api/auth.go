package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/starford/hashnote/internal/apperr"
)

// Auth modes.
const (
	ModeDisabled = "disabled"
	ModeToken    = "token"
	ModeJWT      = "jwt"
)

var (
	errMissingAuthorization = fmt.Errorf("missing authorization: %w", apperr.ErrUnauthorized)
	errBadAuthorization     = fmt.Errorf("malformed authorization: %w", apperr.ErrUnauthorized)
)

// AuthOptions configures an Auth.
type AuthOptions struct {
	Mode      string
	Token     string
	JWTSecret string
	Issuer    string
	Audience  string
	// DefaultUser owns requests in disabled and token modes.
	DefaultUser string
}

// Auth resolves the user behind a request.
type Auth struct {
	opts   AuthOptions
	parser *jwt.Parser
}

// NewAuth creates an Auth for opts.
func NewAuth(opts AuthOptions) *Auth {
	if opts.Mode == "" {
		opts.Mode = ModeDisabled
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = "local"
	}
	return &Auth{
		opts:   opts,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// UserID authenticates r and returns its user id. EventSource clients cannot
// set headers, so GET requests to the events stream may pass the bearer as
// the access_token query parameter.
func (a *Auth) UserID(r *http.Request) (string, error) {
	if a.opts.Mode == ModeDisabled {
		return a.opts.DefaultUser, nil
	}

	h := r.Header.Get("Authorization")
	if h == "" && r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events") {
		if tok := r.URL.Query().Get("access_token"); tok != "" {
			return a.UserIDFromBearer(tok)
		}
	}
	if h == "" {
		return "", errMissingAuthorization
	}
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return "", errBadAuthorization
	}
	return a.UserIDFromBearer(strings.TrimSpace(tok))
}

// UserIDFromBearer validates a bearer token and returns the user it names.
func (a *Auth) UserIDFromBearer(token string) (string, error) {
	if token == "" {
		return "", errBadAuthorization
	}
	switch a.opts.Mode {
	case ModeToken:
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.opts.Token)) != 1 {
			return "", fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
		}
		return a.opts.DefaultUser, nil
	case ModeJWT:
		return a.userFromJWT(token)
	default:
		return a.opts.DefaultUser, nil
	}
}

func (a *Auth) userFromJWT(tokenStr string) (string, error) {
	parsed, err := a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(a.opts.JWTSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims: %w", apperr.ErrUnauthorized)
	}
	if a.opts.Audience != "" && !claims.VerifyAudience(a.opts.Audience, true) {
		return "", fmt.Errorf("invalid audience: %w", apperr.ErrUnauthorized)
	}
	if a.opts.Issuer != "" && !claims.VerifyIssuer(a.opts.Issuer, true) {
		return "", fmt.Errorf("invalid issuer: %w", apperr.ErrUnauthorized)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("missing sub: %w", apperr.ErrUnauthorized)
	}
	return sub, nil
}
