package security

import "golang.org/x/crypto/bcrypt"

// passwordCost is the bcrypt work factor applied to stored credentials.
const passwordCost = 12

// HashPassword derives the bcrypt hash stored for an account password.
func HashPassword(plain string) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if errHash != nil {
		return "", errHash
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
