package auth

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/kyro2829/safe-senior-care/internal/model"
)

// パスワード強度ポリシー: 8文字以上、大文字・小文字・数字・記号を各1文字以上。
const passwordMinLength = 8

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// ValidateEmail はメールアドレスの形式を検証する。
// 違反時はfieldが"email"のValidationErrorを返す。
func ValidateEmail(email string) *model.APIError {
	if strings.TrimSpace(email) == "" {
		return model.NewValidationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewValidationError("email", "is not a valid email address")
	}
	return nil
}

// ValidatePassword はパスワード強度ポリシーを検証する。
// 違反時はfieldが"password"のValidationErrorを返す。
func ValidatePassword(password string) *model.APIError {
	if len(password) < passwordMinLength {
		return model.NewValidationError("password", "must be at least 8 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, c):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return model.NewValidationError("password", "must contain at least one uppercase letter")
	case !hasLower:
		return model.NewValidationError("password", "must contain at least one lowercase letter")
	case !hasDigit:
		return model.NewValidationError("password", "must contain at least one number")
	case !hasSymbol:
		return model.NewValidationError("password", "must contain at least one special character")
	}

	return nil
}

// ValidateMetadata はプロフィールメタデータの長さ上限を検証する。
// すべてのフィールドは任意入力。
func ValidateMetadata(meta model.Metadata) *model.APIError {
	if len(meta.FirstName) > 100 {
		return model.NewValidationError("first_name", "must be at most 100 characters")
	}
	if len(meta.LastName) > 100 {
		return model.NewValidationError("last_name", "must be at most 100 characters")
	}
	if len(meta.Phone) > 20 {
		return model.NewValidationError("phone", "must be at most 20 characters")
	}
	if len(meta.EmergencyContact) > 20 {
		return model.NewValidationError("emergency_contact", "must be at most 20 characters")
	}
	return nil
}
