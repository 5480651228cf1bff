package webhook_delivery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignatureClaims bind a signature to one delivery of one body.
type SignatureClaims struct {
	Event         string `json:"event"`
	WebhookID     string `json:"webhook_id"`
	EventID       string `json:"event_id"`
	PayloadSHA256 string `json:"payload_sha256"`
	jwt.RegisteredClaims
}

func payloadDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Sign returns an HS256 token over the body digest.
func Sign(secret string, event, webhookID, eventID string, body []byte, now time.Time) (string, error) {
	claims := SignatureClaims{
		Event:         event,
		WebhookID:     webhookID,
		EventID:       eventID,
		PayloadSHA256: payloadDigest(body),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "hostbot",
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Verify checks a signature header against the received body.
func Verify(secret, token string, body []byte) (*SignatureClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &SignatureClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse signature: %w", err)
	}
	claims, ok := parsed.Claims.(*SignatureClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid signature")
	}
	if claims.PayloadSHA256 != payloadDigest(body) {
		return nil, fmt.Errorf("signature does not match payload")
	}
	return claims, nil
}
