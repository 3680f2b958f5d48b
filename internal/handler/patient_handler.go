package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kyro2829/safe-senior-care/internal/middleware"
	"github.com/kyro2829/safe-senior-care/internal/model"
)

// RelationshipReader は介護者・患者紐付けの読み取りインターフェース。
// repository.RelationshipRepositoryの部分集合として定義する。
type RelationshipReader interface {
	ListPatientsByCaregiverID(ctx context.Context, caregiverID string) ([]*model.User, error)
	ListCaregiversByPatientID(ctx context.Context, patientID string) ([]*model.User, error)
}

// PatientHandler は紐付け一覧のHTTPハンドラー。
// ダッシュボードがアカウント作成後に再取得する患者・介護者一覧を提供する。
type PatientHandler struct {
	relationships RelationshipReader
}

// NewPatientHandler はPatientHandlerを生成する。
func NewPatientHandler(relationships RelationshipReader) *PatientHandler {
	return &PatientHandler{relationships: relationships}
}

// listResponse は紐付け一覧のレスポンスボディ。
type listResponse struct {
	Users []userResponse `json:"users"`
}

// ListPatients は呼び出し元介護者の担当患者一覧を返す。
// GET /api/patients
func (h *PatientHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	patients, err := h.relationships.ListPatientsByCaregiverID(r.Context(), callerID)
	if err != nil {
		slog.Error("failed to list patients", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeList(w, patients)
}

// ListCaregivers は呼び出し元患者の担当介護者一覧を返す。
// GET /api/caregivers
func (h *PatientHandler) ListCaregivers(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	caregivers, err := h.relationships.ListCaregiversByPatientID(r.Context(), callerID)
	if err != nil {
		slog.Error("failed to list caregivers", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeList(w, caregivers)
}

func writeList(w http.ResponseWriter, users []*model.User) {
	resp := listResponse{Users: make([]userResponse, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}
