// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割（caregiver/patient）を表す。
type Role string

const (
	// RoleCaregiver は介護者アカウントを示す。
	RoleCaregiver Role = "caregiver"
	// RolePatient は患者アカウントを示す。
	RolePatient Role = "patient"
)

// Valid はロール値が定義済みのいずれかであることを検証する。
func (r Role) Valid() bool {
	return r == RoleCaregiver || r == RolePatient
}

// User は登録済みアカウント（認証情報＋プロフィール）を表す。
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	Metadata       Metadata
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Metadata はアカウント作成時に登録されるプロフィール情報。
// 元は自由形式のバッグだが、名前付きフィールドの構造体として扱う。
type Metadata struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
	UserType         string `json:"user_type"`
}

// RoleAssignment はユーザーとロールの紐付けを表す。1ユーザーにつき1ロール。
type RoleAssignment struct {
	UserID    string
	Role      Role
	CreatedAt time.Time
}

// Relationship はどの介護者がどの患者を担当するかの紐付けを表す。
type Relationship struct {
	CaregiverID string
	PatientID   string
	CreatedAt   time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
