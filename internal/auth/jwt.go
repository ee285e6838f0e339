package auth

import (
	"errors"
	"fmt"
	"time"

	"auction-ledger/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carry the bidder identity that the ledger trusts as the caller.
type Claims struct {
	Bidder domain.Bidder `json:"bidder"`
	jwt.RegisteredClaims
}

// GenerateJWT signs a token for bidder. A non-positive expiration means 24h.
func GenerateJWT(secret, issuer string, bidder domain.Bidder, expiration time.Duration) (string, error) {
	if bidder == "" {
		return "", errors.New("bidder is required")
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	now := time.Now()
	claims := Claims{
		Bidder: bidder,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(bidder),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Bidder == "" {
		return nil, fmt.Errorf("token carries no bidder")
	}
	return claims, nil
}
