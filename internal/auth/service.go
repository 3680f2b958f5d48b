// Package auth はサインアップ、サインイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kyro2829/safe-senior-care/internal/model"
	"github.com/kyro2829/safe-senior-care/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// SignUp はセルフサインアップで介護者アカウントを作成し、セッションを発行する。
// ユーザーと介護者ロールは同一トランザクションで作成される。
// メール確認フローは持たないため、email_confirmedはfalseのまま登録される。
func (s *Service) SignUp(ctx context.Context, email, password string, meta model.Metadata) (*model.User, *model.Session, error) {
	if apiErr := ValidateEmail(email); apiErr != nil {
		return nil, nil, apiErr
	}
	if apiErr := ValidatePassword(password); apiErr != nil {
		return nil, nil, apiErr
	}
	if apiErr := ValidateMetadata(meta); apiErr != nil {
		return nil, nil, apiErr
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	meta.UserType = string(model.RoleCaregiver)
	user := &model.User{
		ID:             uuid.New().String(),
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: false,
		Metadata:       meta,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.CreateWithRole(ctx, user, model.RoleCaregiver); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, model.NewDuplicateEmailError()
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("caregiver signed up",
		slog.String("user_id", user.ID),
	)

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return user, session, nil
}

// SignIn はメールアドレスとパスワードで認証し、セッションを発行する。
// メール未登録とパスワード不一致は同じエラーとして返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in",
		slog.String("user_id", user.ID),
	)

	return user, session, nil
}

// SignOut はセッションを破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser は認証済みユーザーIDからユーザー情報を取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthenticatedError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
