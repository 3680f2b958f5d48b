package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kyro2829/safe-senior-care/internal/middleware"
	"github.com/kyro2829/safe-senior-care/internal/model"
	"github.com/kyro2829/safe-senior-care/internal/provision"
)

// ProvisionServiceInterface は患者アカウント作成ハンドラーが必要とするサービスインターフェース。
type ProvisionServiceInterface interface {
	ProvisionPatient(ctx context.Context, callerID string, req provision.Request) (*provision.Result, error)
}

// ProvisionHandler は患者アカウント作成のHTTPハンドラー。
type ProvisionHandler struct {
	service ProvisionServiceInterface
}

// NewProvisionHandler はProvisionHandlerを生成する。
func NewProvisionHandler(service ProvisionServiceInterface) *ProvisionHandler {
	return &ProvisionHandler{service: service}
}

// provisionRequest は患者アカウント作成のリクエストボディ。
type provisionRequest struct {
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Metadata provisionRawMeta `json:"metadata"`
}

// provisionRawMeta はリクエストのメタデータ。
// user_typeはクライアント指定を無視してサービス側でpatientに固定する。
type provisionRawMeta struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone"`
	EmergencyContact string `json:"emergency_contact"`
}

// provisionResponse は作成成功時のレスポンスボディ。
type provisionResponse struct {
	Success bool                  `json:"success"`
	User    provisionUserResponse `json:"user"`
}

type provisionUserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func toMetadata(raw provisionRawMeta) model.Metadata {
	return model.Metadata{
		FirstName:        raw.FirstName,
		LastName:         raw.LastName,
		Phone:            raw.Phone,
		EmergencyContact: raw.EmergencyContact,
	}
}

// CreatePatient は認証済み介護者の代理で患者アカウントを作成する。
// POST /api/patients
//
// 失敗は{"error": "..."}と非2xxステータスで返す:
// 401=未認証、403=介護者以外、400=検証・重複、500=ロール/紐付け書き込み失敗。
func (h *ProvisionHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	callerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.service.ProvisionPatient(r.Context(), callerID, provision.Request{
		Email:    req.Email,
		Password: req.Password,
		Metadata: toMetadata(req.Metadata),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, provisionResponse{
		Success: true,
		User: provisionUserResponse{
			ID:    result.PatientID,
			Email: result.Email,
		},
	})
}
