package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for password hashing. The encoded hash format pins
// these values, so changing them only affects newly written hashes.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16
)

// User represents an account that synchronizes reading progress.
//
// Username is the immutable primary key. PasswordHash is an Argon2id
// encoded hash; the raw secret is never stored. LastActivity is Unix
// milliseconds of the most recent authenticated request, zero if the
// user has never been active.
type User struct {
	Username     string
	PasswordHash string
	LastActivity int64
}

// NewUser creates a user with the given username and plain secret.
// The secret is hashed with Argon2id and a random salt before storage.
func NewUser(username, secret string) (*User, error) {
	if username == "" {
		return nil, ErrInvalidArgument.WithDetails("username must not be empty")
	}
	if strings.ContainsRune(username, 0) {
		return nil, ErrInvalidArgument.WithDetails("username must not contain NUL")
	}
	if secret == "" {
		return nil, ErrInvalidArgument.WithDetails("password must not be empty")
	}

	hash, err := HashSecret(secret)
	if err != nil {
		return nil, ErrStorageError.WithCause(err)
	}

	return &User{
		Username:     username,
		PasswordHash: hash,
	}, nil
}

// Check verifies a plain secret against the stored hash in constant time.
func (u *User) Check(secret string) bool {
	return VerifySecret(secret, u.PasswordHash)
}

// Touch updates LastActivity to the current time.
func (u *User) Touch() {
	u.LastActivity = time.Now().UnixMilli()
}

// LastActivityTime returns LastActivity as a time.Time, or the zero time
// if the user has never been active.
func (u *User) LastActivityTime() time.Time {
	if u.LastActivity == 0 {
		return time.Time{}
	}
	return time.UnixMilli(u.LastActivity)
}

// HashSecret hashes a secret using Argon2id with a random salt.
//
// Returns the hash in the format: $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func HashSecret(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	hashB64 := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Parallelism, saltB64, hashB64), nil
}

// VerifySecret verifies a secret against an Argon2id encoded hash. The
// derivation parameters come from the encoded hash itself, so hashes
// written under older parameter choices keep verifying.
//
// Any malformed hash verifies as false. The final comparison is
// constant-time to prevent timing side channels.
func VerifySecret(secret, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	if parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(secret), salt, iterations, memory, parallelism, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1
}
