// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに返すメッセージと、ログ・メトリクス用の分類コードを含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアント向けメッセージ
	Category string // カテゴリ: auth, validation, provision, system
	Field    string // バリデーション違反のフィールド名（該当時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated            = "UNAUTHENTICATED"
	ErrCodeForbidden                  = "FORBIDDEN"
	ErrCodeValidation                 = "VALIDATION_ERROR"
	ErrCodeDuplicateEmail             = "DUPLICATE_EMAIL"
	ErrCodeRoleAssignmentFailed       = "ROLE_ASSIGNMENT_FAILED"
	ErrCodeRelationshipCreationFailed = "RELATIONSHIP_CREATION_FAILED"
	ErrCodeInternal                   = "INTERNAL_ERROR"
	ErrCodeInvalidCredentials         = "INVALID_CREDENTIALS"
)

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "User not authenticated",
		Category: "auth",
	}
}

// NewForbiddenError は介護者以外が患者アカウント作成を試みた場合のエラーを生成する。
// ロール未割り当ても「介護者でない」として扱う（fail closed）。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Only caregivers can create patient accounts",
		Category: "auth",
	}
}

// NewValidationError は入力検証エラーを生成する。違反フィールド名を保持する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Field:    field,
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
// 最終的な真偽はDBの一意制約で判定される。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "A user with this email address has already been registered",
		Category: "validation",
		Field:    "email",
	}
}

// NewRoleAssignmentFailedError はロール割り当て書き込み失敗エラーを生成する。
func NewRoleAssignmentFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeRoleAssignmentFailed,
		Message:  "Failed to create patient role",
		Category: "provision",
	}
}

// NewRelationshipCreationFailedError は介護者・患者の紐付け書き込み失敗エラーを生成する。
func NewRelationshipCreationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeRelationshipCreationFailed,
		Message:  "Failed to create caregiver-patient relationship",
		Category: "provision",
	}
}

// NewInternalError は想定外のバックエンド障害エラーを生成する。
// 詳細はログにのみ記録し、クライアントには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
	}
}

// NewInvalidCredentialsError はサインイン失敗エラーを生成する。
// メール未登録とパスワード不一致は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid login credentials",
		Category: "auth",
	}
}
