// Package role はユーザーのロール解決を提供する。
package role

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyro2829/safe-senior-care/internal/model"
	"github.com/kyro2829/safe-senior-care/internal/repository"
)

// Resolver はロール割り当ての読み取りとデフォルト割り当てを提供する。
type Resolver struct {
	roleRepo repository.RoleRepository
}

// NewResolver はResolverを生成する。
func NewResolver(roleRepo repository.RoleRepository) *Resolver {
	return &Resolver{roleRepo: roleRepo}
}

// Resolve は指定ユーザーのロールを返す。割り当てが存在しない場合は空文字を返す。
// 読み取りのみで書き込みは一切行わない。
// 認可判断（患者アカウント作成の介護者チェック等）は必ずこちらを使うこと。
// Ensureのデフォルト割り当てを認可判断に使うと、ロール未割り当てのユーザーが
// 同一リクエスト内で介護者に昇格してチェックを通過してしまう。
func (r *Resolver) Resolve(ctx context.Context, userID string) (model.Role, error) {
	assignment, err := r.roleRepo.FindByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
	if assignment == nil {
		return "", nil
	}
	return assignment.Role, nil
}

// Ensure は指定ユーザーのロールを返し、割り当てが存在しない場合は
// caregiverをデフォルトとして書き込んでから返す。
// ロール導入以前の既存アカウント救済用で、セッションコンテキストからのみ呼ばれる。
func (r *Resolver) Ensure(ctx context.Context, userID string) (model.Role, error) {
	current, err := r.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	if current != "" {
		return current, nil
	}

	assignment := &model.RoleAssignment{
		UserID:    userID,
		Role:      model.RoleCaregiver,
		CreatedAt: time.Now(),
	}
	if err := r.roleRepo.Create(ctx, assignment); err != nil {
		return "", fmt.Errorf("failed to assign default role: %w", err)
	}

	slog.Info("assigned default caregiver role",
		slog.String("user_id", userID),
	)

	return model.RoleCaregiver, nil
}
