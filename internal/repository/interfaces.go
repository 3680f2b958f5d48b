// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/kyro2829/safe-senior-care/internal/model"
)

// ErrDuplicateEmail は登録済みメールアドレスでのユーザー作成を表す。
// DBの一意制約違反から変換される（TOCTOUの最終的な真実の源）。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はアカウント（Identity）データの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// 比較は大文字小文字を区別しない。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが登録済みの場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithRole はユーザーとロール割り当てを同一トランザクションで作成する。
	// セルフサインアップ用。メールアドレス重複時はErrDuplicateEmailを返す。
	CreateWithRole(ctx context.Context, user *model.User, role model.Role) error
}

// RoleRepository はロール割り当ての永続化インターフェース。
type RoleRepository interface {
	// FindByUserID は指定ユーザーのロール割り当てを取得する。
	// 割り当てが存在しない場合はnilを返す（読み取り専用、副作用なし）。
	FindByUserID(ctx context.Context, userID string) (*model.RoleAssignment, error)

	// Create はロール割り当てを作成する。既に割り当てが存在する場合はエラーを返す。
	Create(ctx context.Context, assignment *model.RoleAssignment) error
}

// RelationshipRepository は介護者・患者の紐付けの永続化インターフェース。
type RelationshipRepository interface {
	// Create は紐付けを作成する。同一ペアの再作成は冪等（no-op）。
	Create(ctx context.Context, rel *model.Relationship) error

	// ListPatientsByCaregiverID は指定介護者の担当患者一覧を返す。
	ListPatientsByCaregiverID(ctx context.Context, caregiverID string) ([]*model.User, error)

	// ListCaregiversByPatientID は指定患者の担当介護者一覧を返す。
	ListCaregiversByPatientID(ctx context.Context, patientID string) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// PostgreSQL実装とRedis実装が差し替え可能。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れ・不存在の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
