package crypto

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies user passwords with bcrypt.
type PasswordHasher struct {
	dummy     []byte
	dummyOnce sync.Once
	cost      int
}

// NewPasswordHasher создает hasher с заданной стоимостью bcrypt.
// Значение вне [bcrypt.MinCost, bcrypt.MaxCost] заменяется на bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the bcrypt cost in use.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt hash of plain. The salt is generated per call.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plain matches hash.
// Malformed or empty hashes never match.
func (h *PasswordHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// VerifyDummy performs a comparison against a fixed hash of the same cost and
// always returns false. Used when the user does not exist so that login
// latency does not reveal it.
func (h *PasswordHasher) VerifyDummy(plain string) bool {
	h.dummyOnce.Do(func() {
		// Ошибка возможна только при неверной стоимости, которая уже проверена.
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("taskkeeper-timing-guard"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
	return false
}
