// internal/seat/token.go
package seat

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/wallwars/wallwars/engine"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid seat token")

// Claims binds a bearer to one seat of one game.
type Claims struct {
	GameID uuid.UUID       `json:"gid"`
	Seat   engine.PlayerID `json:"seat"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies seat tokens with HMAC-SHA256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an issuer for secret. An empty secret is replaced by a
// random one, so tokens do not survive a restart.
func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate seat secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue returns a token for seat in game.
func (i *Issuer) Issue(gameID uuid.UUID, seat engine.PlayerID) (string, error) {
	now := i.now()
	claims := Claims{
		GameID: gameID,
		Seat:   seat,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%s/%d", gameID, seat),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks tok and returns the seat it grants in gameID.
func (i *Issuer) Verify(tok string, gameID uuid.UUID) (engine.PlayerID, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return engine.NoPlayer, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.GameID != gameID {
		return engine.NoPlayer, fmt.Errorf("%w: token is for game %s", ErrInvalidToken, claims.GameID)
	}
	if !claims.Seat.Valid() {
		return engine.NoPlayer, fmt.Errorf("%w: bad seat %d", ErrInvalidToken, claims.Seat)
	}
	return claims.Seat, nil
}
