// Package auth issues and verifies the bearer tokens that identify players.
// Tokens are HS256 JWTs carrying the player id as subject and the display
// name in "name".
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

// DefaultTTL is how long an issued token stays valid
const DefaultTTL = 12 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated player behind a request
type Identity struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// New creates an authenticator signing with secret
func New(secret, issuer string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for id
func (a *Authenticator) Issue(id Identity) (string, error) {
	if id.PlayerID == "" {
		return "", fmt.Errorf("player id is required")
	}
	if id.Name == "" {
		return "", fmt.Errorf("name is required")
	}

	now := a.now()
	claims := jwt.MapClaims{
		"iss":  a.issuer,
		"sub":  id.PlayerID,
		"name": id.Name,
		"iat":  now.Unix(),
		"exp":  now.Add(a.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify checks signature, expiry and issuer and returns the identity
func (a *Authenticator) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if !claims.VerifyIssuer(a.issuer, a.issuer != "") {
		return Identity{}, fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{PlayerID: sub, Name: name}, nil
}
