package domain

import "time"

// TokenIssuer signs bearer tokens for operator access.
type TokenIssuer interface {
	Issue(subject string, expiry time.Duration) (string, error)
}

// TokenVerifier validates a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}
