package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPassword returns the hex encoded SHA-256 digest of the password.
// The registry stores digests in exactly this format, so changing it
// invalidates every existing users file.
//
// No per-account salt and no slow KDF: kept for compatibility with
// existing registry files. Production deployments should migrate to
// bcrypt (see pkg.HashPassword, used for the operator secret) once a
// registry migration is in place.
func HashPassword(password string) string {
	digest := sha256.Sum256([]byte(password))
	return hex.EncodeToString(digest[:])
}

func CheckPasswordHash(password, digest string) bool {
	return HashPassword(password) == digest
}
