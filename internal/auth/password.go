package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/argon2"
)

var ErrEmptyPassword = errors.New("auth: empty password")

// argon2Params is stored next to each hash so verification always replays the
// cost the hash was created with, even after the policy below changes.
type argon2Params struct {
	Time    uint32 `json:"t"`
	Memory  uint32 `json:"m"` // KiB
	Threads uint8  `json:"p"`
	KeyLen  uint32 `json:"k"`
	SaltLen uint32 `json:"s"`
}

type PasswordHasher struct {
	cur argon2Params
}

func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{
		cur: argon2Params{
			Time:    3,
			Memory:  64 * 1024,
			Threads: 1,
			KeyLen:  32,
			SaltLen: 16,
		},
	}
}

func (p *PasswordHasher) Hash(password string) (hash, salt, paramsJSON []byte, err error) {
	if password == "" {
		return nil, nil, nil, ErrEmptyPassword
	}
	salt = make([]byte, p.cur.SaltLen)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, nil, err
	}
	hash = argon2.IDKey([]byte(password), salt, p.cur.Time, p.cur.Memory, p.cur.Threads, p.cur.KeyLen)
	paramsJSON, err = json.Marshal(p.cur)
	if err != nil {
		return nil, nil, nil, err
	}
	return hash, salt, paramsJSON, nil
}

func (p *PasswordHasher) Verify(password string, hash, salt, paramsJSON []byte) bool {
	var stored argon2Params
	if err := json.Unmarshal(paramsJSON, &stored); err != nil {
		return false
	}
	calculated := argon2.IDKey([]byte(password), salt, stored.Time, stored.Memory, stored.Threads, stored.KeyLen)
	return subtle.ConstantTimeCompare(calculated, hash) == 1
}
