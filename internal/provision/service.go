// Package provision は介護者による患者アカウントの特権作成フローを提供する。
package provision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kyro2829/safe-senior-care/internal/auth"
	"github.com/kyro2829/safe-senior-care/internal/model"
	"github.com/kyro2829/safe-senior-care/internal/repository"
)

// MetricsRecorder はプロビジョニング結果のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordProvisionSuccess()
	RecordProvisionFailure(code string)
	RecordProvisionLatency(d time.Duration)
}

// Request は患者アカウント作成の入力。
type Request struct {
	Email    string
	Password string
	Metadata model.Metadata
}

// Result は作成された患者アカウントの識別情報。
type Result struct {
	PatientID string
	Email     string
}

// ServiceConfig はプロビジョニングサービスの設定。
type ServiceConfig struct {
	BcryptCost int
}

// Service は患者アカウントのプロビジョニングを実行する。
// 呼び出し元の認証はセッションミドルウェアで解決済みであること。
//
// 介護者チェックはroleRepo.FindByUserIDの読み取りのみで行う。
// role.Resolver.Ensureのようなデフォルト割り当てをこのチェックに使うと、
// ロール未割り当てのユーザーが同一リクエスト内で昇格して通過してしまう。
type Service struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	relRepo  repository.RelationshipRepository
	metrics  MetricsRecorder
	config   ServiceConfig
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	relRepo repository.RelationshipRepository,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo: userRepo,
		roleRepo: roleRepo,
		relRepo:  relRepo,
		metrics:  metrics,
		config:   config,
	}
}

// ProvisionPatient は認証済み介護者callerIDの代理で患者アカウントを作成する。
//
// 手順（各ステップの失敗は即座に中断して報告する）:
//  1. 呼び出し元のロールを読み取り専用で確認し、caregiver以外は拒否する。
//     ロール未割り当ても拒否（fail closed）。
//  2. 入力を検証する（メール形式、パスワード強度、メタデータ長）。
//  3. 患者のアカウントを作成する。介護者が身元を保証するためemail_confirmedは
//     true、user_typeはpatientで固定する。
//  4. patientロールを割り当てる。
//  5. 呼び出し元介護者との紐付けを作成する。
//
// ステップ4・5の失敗時にステップ3のアカウントは削除しない。
// 孤立アカウントはERRORログに記録し、手動での後始末に委ねる。
func (s *Service) ProvisionPatient(ctx context.Context, callerID string, req Request) (*Result, error) {
	start := time.Now()
	result, err := s.provision(ctx, callerID, req)
	s.record(start, err)
	return result, err
}

func (s *Service) provision(ctx context.Context, callerID string, req Request) (*Result, error) {
	// 1. 介護者チェック（読み取り専用、割り当てなしは拒否）
	assignment, err := s.roleRepo.FindByUserID(ctx, callerID)
	if err != nil {
		slog.Error("failed to resolve caller role",
			slog.String("caller_id", callerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError()
	}
	if assignment == nil || assignment.Role != model.RoleCaregiver {
		return nil, model.NewForbiddenError()
	}

	// 2. 入力検証
	if apiErr := auth.ValidateEmail(req.Email); apiErr != nil {
		return nil, apiErr
	}
	if apiErr := auth.ValidatePassword(req.Password); apiErr != nil {
		return nil, apiErr
	}
	if apiErr := auth.ValidateMetadata(req.Metadata); apiErr != nil {
		return nil, apiErr
	}

	// 重複の事前チェック。同時リクエストとの競合はDBの一意制約が最終判定する。
	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		slog.Error("failed to check email availability",
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError()
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	// 3. 患者アカウントの作成
	hash, err := auth.HashPassword(req.Password, s.config.BcryptCost)
	if err != nil {
		slog.Error("failed to hash patient password",
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError()
	}

	now := time.Now()
	meta := req.Metadata
	meta.UserType = string(model.RolePatient)
	patient := &model.User{
		ID:             uuid.New().String(),
		Email:          req.Email,
		PasswordHash:   hash,
		EmailConfirmed: true,
		Metadata:       meta,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.Create(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError()
		}
		slog.Error("failed to create patient account",
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError()
	}

	// 4. patientロールの割り当て
	patientRole := &model.RoleAssignment{
		UserID:    patient.ID,
		Role:      model.RolePatient,
		CreatedAt: now,
	}
	if err := s.roleRepo.Create(ctx, patientRole); err != nil {
		// アカウントは作成済みのため、孤立したIdentityが残る
		slog.Error("patient role assignment failed, orphaned account remains",
			slog.String("patient_id", patient.ID),
			slog.String("caregiver_id", callerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRoleAssignmentFailedError()
	}

	// 5. 介護者・患者の紐付け
	rel := &model.Relationship{
		CaregiverID: callerID,
		PatientID:   patient.ID,
		CreatedAt:   now,
	}
	if err := s.relRepo.Create(ctx, rel); err != nil {
		slog.Error("caregiver-patient relationship creation failed, orphaned account remains",
			slog.String("patient_id", patient.ID),
			slog.String("caregiver_id", callerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRelationshipCreationFailedError()
	}

	slog.Info("patient account provisioned",
		slog.String("patient_id", patient.ID),
		slog.String("caregiver_id", callerID),
	)

	return &Result{PatientID: patient.ID, Email: patient.Email}, nil
}

// record はプロビジョニング結果をメトリクスに記録する。
func (s *Service) record(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordProvisionLatency(time.Since(start))
	if err == nil {
		s.metrics.RecordProvisionSuccess()
		return
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		s.metrics.RecordProvisionFailure(apiErr.Code)
		return
	}
	s.metrics.RecordProvisionFailure(model.ErrCodeInternal)
}
