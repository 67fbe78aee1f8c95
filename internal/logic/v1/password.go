package v1

import "golang.org/x/crypto/bcrypt"

// PasswordVerifier checks a password against a stored hash with constant
// shape: when no hash exists it burns an equivalent amount of work against a
// dummy hash, so response latency cannot distinguish "no such account" from
// "wrong password".
type PasswordVerifier interface {
	// Verify reports whether password matches storedHash. An empty
	// storedHash means no credential exists; the check still runs at full
	// cost and reports false.
	Verify(password, storedHash string) bool

	// DummyWork performs one verification's worth of hashing against the
	// dummy hash. Paths that must not reveal account existence (password
	// reset request) call this on the "no user" branch.
	DummyWork()

	// Hash produces a hash for a new password.
	Hash(password string) (string, error)
}

// BcryptVerifier implements PasswordVerifier with bcrypt.
type BcryptVerifier struct {
	cost      int
	dummyHash []byte
}

// NewBcryptVerifier builds a verifier with the given cost. The dummy hash is
// generated once, at the same cost real hashes use, so the dummy comparison
// is indistinguishable from a real one.
func NewBcryptVerifier(cost int) (*BcryptVerifier, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("claims-auth-dummy-credential"), cost)
	if err != nil {
		return nil, err
	}

	return &BcryptVerifier{cost: cost, dummyHash: dummy}, nil
}

func (v *BcryptVerifier) Verify(password, storedHash string) bool {
	if storedHash == "" {
		// No credential: full-cost comparison against the dummy hash,
		// result discarded.
		_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

func (v *BcryptVerifier) DummyWork() {
	_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte("claims-auth-dummy-password"))
}

func (v *BcryptVerifier) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
