package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ModePlaceholder = "placeholder"
	ModeJWT         = "jwt"

	TokenType = "bearer"
)

// Issuer hands out access tokens after a successful login.
type Issuer struct {
	mode   string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(mode, secret string, ttl time.Duration) (*Issuer, error) {
	mode = strings.ToLower(mode)
	switch mode {
	case "":
		mode = ModePlaceholder
	case ModePlaceholder:
	case ModeJWT:
		if secret == "" {
			return nil, fmt.Errorf("jwt mode requires JWT_SECRET")
		}
	default:
		return nil, fmt.Errorf("unsupported TOKEN_MODE=%q", mode)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{mode: mode, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a token for the user. Placeholder mode returns a fixed,
// unsigned string derived from the username.
func (i *Issuer) Issue(userID uint64, username string) (string, error) {
	if i.mode == ModePlaceholder {
		return placeholderPrefix + username, nil
	}
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Claims identifies the caller behind a token. Placeholder tokens only carry
// the username, JWTs only the user id.
type Claims struct {
	UserID   uint64
	Username string
}

const placeholderPrefix = "dummy_token_for_"

// Verify resolves a token issued by Issue in the current mode.
func (i *Issuer) Verify(token string) (Claims, error) {
	if i.mode == ModePlaceholder {
		name, ok := strings.CutPrefix(token, placeholderPrefix)
		if !ok || name == "" {
			return Claims{}, fmt.Errorf("invalid token")
		}
		return Claims{Username: name}, nil
	}
	id, err := i.ParseJWT(token)
	if err != nil {
		return Claims{}, err
	}
	return Claims{UserID: id}, nil
}

// ParseJWT validates an HS256 token and returns the user id in its subject.
func (i *Issuer) ParseJWT(tokenStr string) (uint64, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return 0, err
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || !tok.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	return strconv.ParseUint(claims.Subject, 10, 64)
}
