package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(password string, cost int) (string, error) {
	result, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(result), err
}

// CheckPasswordHash はパスワードとbcryptハッシュの一致を検証する。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
