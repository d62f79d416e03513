package jwt

import (
	"errors"
	"strconv"
	"time"

	libJWT "github.com/golang-jwt/jwt/v5"
)

// hs512 holds what both token kinds share: key, issuer, audience, lifetime.
type hs512 struct {
	secret    []byte
	issuer    string
	audiences []string
	ttl       time.Duration
	clock     clocker
	uuid      generator
}

func newHS512(cfg Config) (hs512, error) {
	if len(cfg.Secret) < 64 {
		return hs512{}, ErrSigningKeyTooShort
	}

	return hs512{
		secret:    cfg.Secret,
		issuer:    cfg.Issuer,
		audiences: cfg.Audiences,
		ttl:       cfg.TTL,
		clock:     cfg.Clock,
		uuid:      cfg.UUID,
	}, nil
}

func (h hs512) registered(subject int64, now time.Time) libJWT.RegisteredClaims {
	return libJWT.RegisteredClaims{
		ID:        h.uuid.Generate(),
		Subject:   strconv.FormatInt(subject, 10),
		Issuer:    h.issuer,
		Audience:  h.audiences,
		IssuedAt:  libJWT.NewNumericDate(now),
		NotBefore: libJWT.NewNumericDate(now),
		ExpiresAt: libJWT.NewNumericDate(now.Add(h.ttl)),
	}
}

func (h hs512) sign(claims libJWT.Claims) (string, error) {
	return libJWT.NewWithClaims(libJWT.SigningMethodHS512, claims).SignedString(h.secret)
}

func (h hs512) parse(tokenStr string, claims libJWT.Claims) error {
	token, err := libJWT.ParseWithClaims(tokenStr, claims,
		func(t *libJWT.Token) (any, error) {
			if t.Method != libJWT.SigningMethodHS512 {
				return nil, ErrInvalidSigningMethod
			}
			return h.secret, nil
		},
		libJWT.WithIssuer(h.issuer),
		libJWT.WithAudience(h.audiences...),
		libJWT.WithValidMethods([]string{libJWT.SigningMethodHS512.Alg()}),
		libJWT.WithIssuedAt(),
		libJWT.WithExpirationRequired(),
		libJWT.WithTimeFunc(h.clock.Now),
	)
	if err != nil {
		if errors.Is(err, libJWT.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return errors.Join(ErrInvalidToken, err)
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}

// Symmetric implements JWT (access tokens) with HS512.
type Symmetric struct {
	hs512
}

// NewHS512 constructs an access-token codec.
func NewHS512(cfg Config) (*Symmetric, error) {
	h, err := newHS512(cfg)
	if err != nil {
		return nil, err
	}

	return &Symmetric{hs512: h}, nil
}

// Generate creates a signed access token for the account.
func (s *Symmetric) Generate(accountID int64, email string) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: s.registered(accountID, s.clock.Now()),
		AccountID:        accountID,
		Email:            email,
	})
}

// Verify parses and validates an access token.
func (s *Symmetric) Verify(tokenStr string) (Claims, error) {
	var claims Claims
	if err := s.parse(tokenStr, &claims); err != nil {
		return Claims{}, err
	}

	return claims, nil
}
