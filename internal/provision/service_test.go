package provision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kyro2829/safe-senior-care/internal/auth"
	"github.com/kyro2829/safe-senior-care/internal/model"
	"github.com/kyro2829/safe-senior-care/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
	createWithRoleFn func(ctx context.Context, user *model.User, role model.Role) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) CreateWithRole(ctx context.Context, user *model.User, role model.Role) error {
	if m.createWithRoleFn != nil {
		return m.createWithRoleFn(ctx, user, role)
	}
	return nil
}

type mockRoleRepo struct {
	findByUserIDFn func(ctx context.Context, userID string) (*model.RoleAssignment, error)
	createFn       func(ctx context.Context, assignment *model.RoleAssignment) error
}

func (m *mockRoleRepo) FindByUserID(ctx context.Context, userID string) (*model.RoleAssignment, error) {
	if m.findByUserIDFn != nil {
		return m.findByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockRoleRepo) Create(ctx context.Context, assignment *model.RoleAssignment) error {
	if m.createFn != nil {
		return m.createFn(ctx, assignment)
	}
	return nil
}

type mockRelationshipRepo struct {
	createFn func(ctx context.Context, rel *model.Relationship) error
}

func (m *mockRelationshipRepo) Create(ctx context.Context, rel *model.Relationship) error {
	if m.createFn != nil {
		return m.createFn(ctx, rel)
	}
	return nil
}

func (m *mockRelationshipRepo) ListPatientsByCaregiverID(_ context.Context, _ string) ([]*model.User, error) {
	return nil, nil
}

func (m *mockRelationshipRepo) ListCaregiversByPatientID(_ context.Context, _ string) ([]*model.User, error) {
	return nil, nil
}

type mockMetrics struct {
	successCount int
	failCodes    []string
	latencies    []time.Duration
}

func (m *mockMetrics) RecordProvisionSuccess()               { m.successCount++ }
func (m *mockMetrics) RecordProvisionFailure(code string)    { m.failCodes = append(m.failCodes, code) }
func (m *mockMetrics) RecordProvisionLatency(d time.Duration) { m.latencies = append(m.latencies, d) }

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.RoleRepository = (*mockRoleRepo)(nil)
var _ repository.RelationshipRepository = (*mockRelationshipRepo)(nil)
var _ MetricsRecorder = (*mockMetrics)(nil)

// --- テストヘルパー ---

const validPassword = "Str0ng!Pass"

func caregiverRoleRepo(callerID string) *mockRoleRepo {
	return &mockRoleRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.RoleAssignment, error) {
			if userID == callerID {
				return &model.RoleAssignment{UserID: callerID, Role: model.RoleCaregiver}, nil
			}
			return nil, nil
		},
	}
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", wantCode)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("error code = %q, want %q", apiErr.Code, wantCode)
	}
}

// --- テスト ---

func TestProvisionPatient_Success_CreatesAccountRoleAndRelationship(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	var createdUser *model.User
	var createdRole *model.RoleAssignment
	var createdRel *model.Relationship

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
	}
	roleRepo := caregiverRoleRepo(callerID)
	roleRepo.createFn = func(ctx context.Context, assignment *model.RoleAssignment) error {
		createdRole = assignment
		return nil
	}
	relRepo := &mockRelationshipRepo{
		createFn: func(ctx context.Context, rel *model.Relationship) error {
			createdRel = rel
			return nil
		},
	}

	svc := NewService(userRepo, roleRepo, relRepo, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	result, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "patient@example.com",
		Password: validPassword,
		Metadata: model.Metadata{
			FirstName: "Hanako",
			LastName:  "Sato",
			Phone:     "090-1234-5678",
		},
	})
	if err != nil {
		t.Fatalf("ProvisionPatient() error = %v", err)
	}

	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.Email != "patient@example.com" {
		t.Errorf("result email = %q, want %q", result.Email, "patient@example.com")
	}
	if result.PatientID == "" {
		t.Error("expected non-empty patient ID")
	}

	// アカウントが作成されること
	if createdUser == nil {
		t.Fatal("expected patient account to be created")
	}
	if createdUser.ID != result.PatientID {
		t.Errorf("created user ID = %q, want %q", createdUser.ID, result.PatientID)
	}
	// 介護者が身元を保証するためemail_confirmedはtrue
	if !createdUser.EmailConfirmed {
		t.Error("expected email_confirmed to be true for provisioned patient")
	}
	// クライアント指定に関わらずuser_typeはpatientに固定される
	if createdUser.Metadata.UserType != string(model.RolePatient) {
		t.Errorf("user_type = %q, want %q", createdUser.Metadata.UserType, model.RolePatient)
	}
	if createdUser.Metadata.FirstName != "Hanako" {
		t.Errorf("first_name = %q, want %q", createdUser.Metadata.FirstName, "Hanako")
	}
	// 平文パスワードは保存されず、bcryptハッシュが一致すること
	if createdUser.PasswordHash == validPassword {
		t.Error("password must not be stored in plaintext")
	}
	if !auth.CheckPasswordHash(validPassword, createdUser.PasswordHash) {
		t.Error("stored hash does not match the password")
	}

	// patientロールが新規アカウントに割り当てられること
	if createdRole == nil {
		t.Fatal("expected patient role to be created")
	}
	if createdRole.UserID != createdUser.ID {
		t.Errorf("role userID = %q, want %q", createdRole.UserID, createdUser.ID)
	}
	if createdRole.Role != model.RolePatient {
		t.Errorf("role = %q, want %q", createdRole.Role, model.RolePatient)
	}

	// 呼び出し元介護者との紐付けが作成されること
	if createdRel == nil {
		t.Fatal("expected relationship to be created")
	}
	if createdRel.CaregiverID != callerID {
		t.Errorf("relationship caregiverID = %q, want %q", createdRel.CaregiverID, callerID)
	}
	if createdRel.PatientID != createdUser.ID {
		t.Errorf("relationship patientID = %q, want %q", createdRel.PatientID, createdUser.ID)
	}
}

func TestProvisionPatient_CallerWithoutRole_ReturnsForbidden(t *testing.T) {
	ctx := context.Background()

	created := false
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = true
			return nil
		},
	}
	// ロール割り当てなし（fail closed）
	roleRepo := &mockRoleRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.RoleAssignment, error) {
			return nil, nil
		},
	}

	svc := NewService(userRepo, roleRepo, &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, "no-role-user", Request{
		Email:    "patient@example.com",
		Password: validPassword,
	})

	assertAPIErrorCode(t, err, model.ErrCodeForbidden)
	if created {
		t.Error("no account must be created when the caller is rejected")
	}
}

func TestProvisionPatient_PatientCaller_ReturnsForbidden(t *testing.T) {
	ctx := context.Background()

	created := false
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = true
			return nil
		},
	}
	roleRepo := &mockRoleRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.RoleAssignment, error) {
			return &model.RoleAssignment{UserID: userID, Role: model.RolePatient}, nil
		},
	}

	svc := NewService(userRepo, roleRepo, &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, "patient-caller", Request{
		Email:    "patient2@example.com",
		Password: validPassword,
	})

	assertAPIErrorCode(t, err, model.ErrCodeForbidden)
	if created {
		t.Error("no account must be created for a patient caller")
	}
}

func TestProvisionPatient_RoleLookupError_ReturnsInternal(t *testing.T) {
	ctx := context.Background()

	roleRepo := &mockRoleRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.RoleAssignment, error) {
			return nil, errors.New("db down")
		},
	}

	svc := NewService(&mockUserRepo{}, roleRepo, &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, "caregiver-1", Request{
		Email:    "patient@example.com",
		Password: validPassword,
	})

	assertAPIErrorCode(t, err, model.ErrCodeInternal)
}

func TestProvisionPatient_InvalidEmail_ReturnsValidationError(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	created := false
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = true
			return nil
		},
	}

	svc := NewService(userRepo, caregiverRoleRepo(callerID), &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "not-an-email",
		Password: validPassword,
	})

	assertAPIErrorCode(t, err, model.ErrCodeValidation)
	if created {
		t.Error("no account must be created for invalid input")
	}
}

func TestProvisionPatient_WeakPassword_ReturnsValidationError(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	tests := []struct {
		name       string
		password   string
		wantReason string
	}{
		{"too short", "S1!a", "at least 8 characters"},
		{"no uppercase", "weak1pass!", "uppercase letter"},
		{"no lowercase", "WEAK1PASS!", "lowercase letter"},
		{"no digit", "WeakPass!", "number"},
		{"no symbol", "WeakPass1", "special character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			userRepo := &mockUserRepo{
				createFn: func(ctx context.Context, user *model.User) error {
					created = true
					return nil
				},
			}

			svc := NewService(userRepo, caregiverRoleRepo(callerID), &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

			_, err := svc.ProvisionPatient(ctx, callerID, Request{
				Email:    "patient@example.com",
				Password: tt.password,
			})

			assertAPIErrorCode(t, err, model.ErrCodeValidation)
			var apiErr *model.APIError
			errors.As(err, &apiErr)
			if !strings.Contains(apiErr.Message, tt.wantReason) {
				t.Errorf("message = %q, want it to contain %q", apiErr.Message, tt.wantReason)
			}
			if created {
				t.Error("no account must be created for a weak password")
			}
		})
	}
}

func TestProvisionPatient_MetadataTooLong_ReturnsValidationError(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	svc := NewService(&mockUserRepo{}, caregiverRoleRepo(callerID), &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "patient@example.com",
		Password: validPassword,
		Metadata: model.Metadata{FirstName: strings.Repeat("a", 101)},
	})

	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestProvisionPatient_PartialMetadata_Succeeds(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	svc := NewService(&mockUserRepo{}, caregiverRoleRepo(callerID), &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	// メタデータはすべて任意入力。名前だけでも成功する。
	result, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "partial@example.com",
		Password: validPassword,
		Metadata: model.Metadata{FirstName: "Taro"},
	})
	if err != nil {
		t.Fatalf("ProvisionPatient() error = %v", err)
	}
	if result == nil || result.PatientID == "" {
		t.Fatal("expected provisioned patient")
	}
}

func TestProvisionPatient_ExistingEmail_ReturnsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	created := false
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "existing-id", Email: email}, nil
		},
		createFn: func(ctx context.Context, user *model.User) error {
			created = true
			return nil
		},
	}

	svc := NewService(userRepo, caregiverRoleRepo(callerID), &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "taken@example.com",
		Password: validPassword,
	})

	assertAPIErrorCode(t, err, model.ErrCodeDuplicateEmail)
	if created {
		t.Error("no account must be created for a duplicate email")
	}
}

func TestProvisionPatient_UniqueViolationAtCreate_ReturnsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	// 事前チェックは通過するが、同時リクエストとの競合で一意制約違反になるケース
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}

	svc := NewService(userRepo, caregiverRoleRepo(callerID), &mockRelationshipRepo{}, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "raced@example.com",
		Password: validPassword,
	})

	assertAPIErrorCode(t, err, model.ErrCodeDuplicateEmail)
}

func TestProvisionPatient_RoleCreateFails_ReturnsRoleAssignmentFailed(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	relCreated := false
	roleRepo := caregiverRoleRepo(callerID)
	roleRepo.createFn = func(ctx context.Context, assignment *model.RoleAssignment) error {
		return errors.New("insert failed")
	}
	relRepo := &mockRelationshipRepo{
		createFn: func(ctx context.Context, rel *model.Relationship) error {
			relCreated = true
			return nil
		},
	}

	svc := NewService(&mockUserRepo{}, roleRepo, relRepo, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "patient@example.com",
		Password: validPassword,
	})

	assertAPIErrorCode(t, err, model.ErrCodeRoleAssignmentFailed)
	// ロール割り当て失敗後に紐付け作成へ進まないこと
	if relCreated {
		t.Error("relationship must not be created after role assignment failure")
	}
}

func TestProvisionPatient_RelationshipCreateFails_ReturnsRelationshipCreationFailed(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"

	relRepo := &mockRelationshipRepo{
		createFn: func(ctx context.Context, rel *model.Relationship) error {
			return errors.New("insert failed")
		},
	}

	svc := NewService(&mockUserRepo{}, caregiverRoleRepo(callerID), relRepo, nil, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "patient@example.com",
		Password: validPassword,
	})

	assertAPIErrorCode(t, err, model.ErrCodeRelationshipCreationFailed)
}

func TestProvisionPatient_RecordsSuccessMetrics(t *testing.T) {
	ctx := context.Background()
	callerID := "caregiver-1"
	metrics := &mockMetrics{}

	svc := NewService(&mockUserRepo{}, caregiverRoleRepo(callerID), &mockRelationshipRepo{}, metrics, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, callerID, Request{
		Email:    "patient@example.com",
		Password: validPassword,
	})
	if err != nil {
		t.Fatalf("ProvisionPatient() error = %v", err)
	}

	if metrics.successCount != 1 {
		t.Errorf("success count = %d, want 1", metrics.successCount)
	}
	if len(metrics.failCodes) != 0 {
		t.Errorf("fail codes = %v, want none", metrics.failCodes)
	}
	if len(metrics.latencies) != 1 {
		t.Errorf("latency records = %d, want 1", len(metrics.latencies))
	}
}

func TestProvisionPatient_RecordsFailureMetricsWithCode(t *testing.T) {
	ctx := context.Background()
	metrics := &mockMetrics{}

	roleRepo := &mockRoleRepo{
		findByUserIDFn: func(ctx context.Context, userID string) (*model.RoleAssignment, error) {
			return nil, nil
		},
	}

	svc := NewService(&mockUserRepo{}, roleRepo, &mockRelationshipRepo{}, metrics, ServiceConfig{BcryptCost: bcrypt.MinCost})

	_, err := svc.ProvisionPatient(ctx, "no-role-user", Request{
		Email:    "patient@example.com",
		Password: validPassword,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if metrics.successCount != 0 {
		t.Errorf("success count = %d, want 0", metrics.successCount)
	}
	if len(metrics.failCodes) != 1 || metrics.failCodes[0] != model.ErrCodeForbidden {
		t.Errorf("fail codes = %v, want [%s]", metrics.failCodes, model.ErrCodeForbidden)
	}
}
