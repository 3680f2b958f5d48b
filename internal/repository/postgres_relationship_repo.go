package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kyro2829/safe-senior-care/internal/model"
)

// PostgresRelationshipRepo はPostgreSQLを使用した介護者・患者紐付けリポジトリ。
type PostgresRelationshipRepo struct {
	db *sql.DB
}

// NewPostgresRelationshipRepo はPostgresRelationshipRepoを生成する。
func NewPostgresRelationshipRepo(db *sql.DB) *PostgresRelationshipRepo {
	return &PostgresRelationshipRepo{db: db}
}

// Create は紐付けを作成する。
// (caregiver_id, patient_id)が複合主キーのため、同一ペアの再作成は冪等。
func (r *PostgresRelationshipRepo) Create(ctx context.Context, rel *model.Relationship) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO caregiver_patients (caregiver_id, patient_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (caregiver_id, patient_id) DO NOTHING`,
		rel.CaregiverID, rel.PatientID, rel.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}
	return nil
}

// ListPatientsByCaregiverID は指定介護者の担当患者一覧を返す。
func (r *PostgresRelationshipRepo) ListPatientsByCaregiverID(ctx context.Context, caregiverID string) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.first_name, u.last_name, u.phone, u.emergency_contact, u.created_at
		 FROM caregiver_patients cp
		 JOIN users u ON u.id = cp.patient_id
		 WHERE cp.caregiver_id = $1
		 ORDER BY cp.created_at`,
		caregiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	return scanRelatedUsers(rows)
}

// ListCaregiversByPatientID は指定患者の担当介護者一覧を返す。
func (r *PostgresRelationshipRepo) ListCaregiversByPatientID(ctx context.Context, patientID string) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.first_name, u.last_name, u.phone, u.emergency_contact, u.created_at
		 FROM caregiver_patients cp
		 JOIN users u ON u.id = cp.caregiver_id
		 WHERE cp.patient_id = $1
		 ORDER BY cp.created_at`,
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list caregivers: %w", err)
	}
	defer rows.Close()

	return scanRelatedUsers(rows)
}

func scanRelatedUsers(rows *sql.Rows) ([]*model.User, error) {
	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(
			&user.ID, &user.Email,
			&user.Metadata.FirstName, &user.Metadata.LastName,
			&user.Metadata.Phone, &user.Metadata.EmergencyContact,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

// compile-time interface check
var _ RelationshipRepository = (*PostgresRelationshipRepo)(nil)
