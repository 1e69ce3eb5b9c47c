package core

import "time"

// DefaultSessionTTL is the fixed signing-session window granted by the
// custody service.
const DefaultSessionTTL = 30 * time.Minute

// SigningSession is the cached credential for the remote signing client.
// It is process-wide state owned by the signer adapter: created on first
// signing need, reused until ExpiresAt, then discarded and recreated.
type SigningSession struct {
	PrivateKeyHex     string    `json:"privateKey"`
	CredentialBundle  string    `json:"credentialBundle"`
	OrganizationID    string    `json:"organizationId"`
	SubOrganizationID string    `json:"subOrganizationId"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// Valid reports whether the session can still be used at the given instant.
func (s *SigningSession) Valid(now time.Time) bool {
	if s == nil || s.CredentialBundle == "" {
		return false
	}
	return now.Before(s.ExpiresAt)
}
