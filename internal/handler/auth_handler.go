package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kyro2829/safe-senior-care/internal/middleware"
	"github.com/kyro2829/safe-senior-care/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password string, meta model.Metadata) (*model.User, *model.Session, error)
	SignIn(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, userID string) (*model.User, error)
}

// RoleResolverInterface はロール解決のインターフェース。
// Ensureは割り当てのないユーザーにcaregiverをデフォルト割り当てする
// セッションコンテキスト専用の振る舞いで、認可判断には使わないこと。
type RoleResolverInterface interface {
	Resolve(ctx context.Context, userID string) (model.Role, error)
	Ensure(ctx context.Context, userID string) (model.Role, error)
}

// AuthHandler はサインアップ・サインイン・セッション関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	roles   RoleResolverInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, roles RoleResolverInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
		roles:   roles,
	}
}

// credentialsRequest はサインアップ・サインインの共通リクエストボディ。
type credentialsRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Metadata model.Metadata `json:"metadata"`
}

// sessionResponse は認証成功時のレスポンスボディ。
type sessionResponse struct {
	AccessToken string       `json:"access_token,omitempty"`
	User        userResponse `json:"user"`
	Role        string       `json:"role,omitempty"`
}

// userResponse はクライアントに返すユーザー表現。
type userResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Phone            string `json:"phone,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
	UserType         string `json:"user_type,omitempty"`
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:               user.ID,
		Email:            user.Email,
		FirstName:        user.Metadata.FirstName,
		LastName:         user.Metadata.LastName,
		Phone:            user.Metadata.Phone,
		EmergencyContact: user.Metadata.EmergencyContact,
		UserType:         user.Metadata.UserType,
	}
}

// SignUp はセルフサインアップで介護者アカウントを作成する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, session, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.Metadata)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: session.ID,
		User:        toUserResponse(user),
		Role:        string(model.RoleCaregiver),
	})
}

// SignIn はメールアドレスとパスワードで認証しセッションを発行する。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// ロールはベストエフォートで解決する。失敗してもサインイン自体は成功させ、
	// クライアントは後から/auth/meで再取得できる。
	roleValue := ""
	if role, roleErr := h.roles.Resolve(r.Context(), user.ID); roleErr == nil {
		roleValue = string(role)
	} else {
		slog.Warn("failed to resolve role at sign-in",
			slog.String("user_id", user.ID),
			slog.String("error", roleErr.Error()),
		)
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: session.ID,
		User:        toUserResponse(user),
		Role:        roleValue,
	})
}

// SignOut はセッションを破棄する。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.service.SignOut(r.Context(), sessionID); err != nil {
		slog.Error("failed to sign out", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報とロールを返す。
// ロール未割り当ての既存アカウントにはcaregiverをデフォルト割り当てする
// （セッションコンテキスト専用の振る舞い）。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// ロール解決はベストエフォート。失敗時は空のまま返す。
	roleValue := ""
	if role, roleErr := h.roles.Ensure(r.Context(), userID); roleErr == nil {
		roleValue = string(role)
	} else {
		slog.Warn("failed to ensure role",
			slog.String("user_id", userID),
			slog.String("error", roleErr.Error()),
		)
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User: toUserResponse(user),
		Role: roleValue,
	})
}
