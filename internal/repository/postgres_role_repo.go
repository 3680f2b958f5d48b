package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kyro2829/safe-senior-care/internal/model"
)

// PostgresRoleRepo はPostgreSQLを使用したロール割り当てリポジトリ。
type PostgresRoleRepo struct {
	db *sql.DB
}

// NewPostgresRoleRepo はPostgresRoleRepoを生成する。
func NewPostgresRoleRepo(db *sql.DB) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: db}
}

// FindByUserID は指定ユーザーのロール割り当てを取得する。
// 割り当てが存在しない場合はnilを返す。読み取りのみで副作用はない。
func (r *PostgresRoleRepo) FindByUserID(ctx context.Context, userID string) (*model.RoleAssignment, error) {
	assignment := &model.RoleAssignment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, role, created_at FROM user_roles WHERE user_id = $1`,
		userID,
	).Scan(&assignment.UserID, &assignment.Role, &assignment.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role assignment: %w", err)
	}

	return assignment, nil
}

// Create はロール割り当てを作成する。
// user_idは主キーのため、既に割り当てが存在する場合はエラーになる。
func (r *PostgresRoleRepo) Create(ctx context.Context, assignment *model.RoleAssignment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role, created_at)
		 VALUES ($1, $2, $3)`,
		assignment.UserID, string(assignment.Role), assignment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert role assignment: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RoleRepository = (*PostgresRoleRepo)(nil)
