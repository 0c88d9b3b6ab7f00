package main

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pushsync/pushsync-go/pkg/auth"
	"github.com/pushsync/pushsync-go/pkg/service"
)

// pushTokenSource returns the platform token source. A fixed token is used
// when given; otherwise a random one is generated per process, as a fresh
// app install would get.
func pushTokenSource(fixed string) service.PushTokenSource {
	if fixed != "" {
		return service.StaticPushToken(fixed)
	}
	return service.StaticPushToken("sim-" + uuid.NewString())
}

// devTokenProvider mints HS256 user tokens locally. Only meant for the
// simulated API or development backends sharing the secret.
func devTokenProvider(secret string, ttl time.Duration) auth.TokenProvider {
	return auth.TokenProviderFunc(func(userID string) (string, error) {
		if secret == "" {
			return "", errors.New("no user token secret configured")
		}
		now := time.Now()
		claims := jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		}
		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	})
}

// checkDevToken verifies tokens minted by devTokenProvider.
func checkDevToken(secret string) func(token string) error {
	return func(token string) error {
		_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		return err
	}
}
