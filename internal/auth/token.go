package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated principal bound to a request or a realtime
// connection. For realtime connections it is established once at handshake
// time and never re-validated per event.
type Identity struct {
	UserID   int64
	Username string
}

var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService issues and validates HS256 bearer tokens. The subject claim
// carries the numeric user id; a username claim rides along so consumers can
// embed a minimal profile without a store lookup.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *TokenService) Issue(id Identity) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":      s.issuer,
		"sub":      strconv.FormatInt(id.UserID, 10),
		"username": id.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, expiry and issuer and returns the embedded
// identity. Every failure mode collapses into ErrInvalidToken; callers only
// need to distinguish valid from not.
func (s *TokenService) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %T", token.Method)
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}
	if iss, _ := claims["iss"].(string); iss != "" && iss != s.issuer {
		return Identity{}, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: non-numeric subject", ErrInvalidToken)
	}

	username, _ := claims["username"].(string)
	return Identity{UserID: userID, Username: username}, nil
}
