package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultSessionIssuer = "sandwich-auth"
	defaultSessionLeeway = 30 * time.Second
	bearerScheme         = "bearer"
)

var (
	ErrMissingSessionSigningKey = errors.New("session validator: signing key required")
	ErrMissingSessionCookieName = errors.New("session validator: cookie name required")
	ErrMissingSessionToken      = errors.New("session validator: token required")
	ErrInvalidSessionToken      = errors.New("session validator: invalid token")
	ErrExpiredSessionToken      = errors.New("session validator: token expired")
	ErrMissingSessionSubject    = errors.New("session validator: subject required")
)

// SessionClaims is the JWT payload minted by the session provider.
type SessionClaims struct {
	UserID          string   `json:"user_id"`
	UserEmail       string   `json:"user_email"`
	UserDisplayName string   `json:"user_display_name"`
	UserAvatarURL   string   `json:"user_avatar_url"`
	UserRoles       []string `json:"user_roles"`
	jwt.RegisteredClaims
}

// SessionValidatorConfig configures session JWT validation. Issuer defaults to
// sandwich-auth; Audience is only enforced when set.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	CookieName    string
	Leeway        time.Duration
	Clock         func() time.Time
}

// SessionValidator validates HS256 session JWTs carried by a bearer header or
// a session cookie.
type SessionValidator struct {
	signingSecret []byte
	cookieName    string
	parser        *jwt.Parser
}

func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultSessionLeeway
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(clock),
	}
	if audience := strings.TrimSpace(cfg.Audience); audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}

	return &SessionValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		cookieName:    cookieName,
		parser:        jwt.NewParser(options...),
	}, nil
}

// ValidateToken verifies the signature and registered claims of the token
// and requires both a subject and a user id.
func (v *SessionValidator) ValidateToken(tokenString string) (SessionClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.signingSecret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, ErrExpiredSessionToken
	case err != nil:
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	case parsed == nil || !parsed.Valid:
		return SessionClaims{}, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.UserID) == "" {
		return SessionClaims{}, ErrMissingSessionSubject
	}
	return *claims, nil
}

// ValidateRequest validates the request's session token. See tokenFromRequest.
func (v *SessionValidator) ValidateRequest(r *http.Request) (SessionClaims, error) {
	token, ok := v.tokenFromRequest(r)
	if !ok {
		return SessionClaims{}, ErrMissingSessionToken
	}
	return v.ValidateToken(token)
}

// tokenFromRequest prefers an Authorization bearer token and falls back to the
// session cookie, which browsers send on EventSource streams.
func (v *SessionValidator) tokenFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if scheme, credentials, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); found &&
		strings.EqualFold(scheme, bearerScheme) {
		return credentials, true
	}
	cookie, err := r.Cookie(v.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}
