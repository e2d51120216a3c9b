package auth

import "parley/internal/domain/models"

// JWTVerifier validates bearer tokens. The middleware only depends on this
// interface so tests can swap in a static verifier.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized if the token is invalid, expired, or signed with an unexpected key.
	VerifyToken(tokenString string) (*models.SupabaseClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
