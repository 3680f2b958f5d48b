// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kyro2829/safe-senior-care/internal/middleware"
	"github.com/kyro2829/safe-senior-care/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIErrorはコードに応じたステータスで返し、それ以外は詳細をログに残して
// 一般的な500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unexpected service error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	status := http.StatusInternalServerError
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated:
		status = http.StatusUnauthorized
	case model.ErrCodeForbidden:
		status = http.StatusForbidden
	case model.ErrCodeValidation, model.ErrCodeDuplicateEmail, model.ErrCodeInvalidCredentials:
		status = http.StatusBadRequest
	case model.ErrCodeRoleAssignmentFailed, model.ErrCodeRelationshipCreationFailed, model.ErrCodeInternal:
		status = http.StatusInternalServerError
	}

	middleware.WriteError(w, status, apiErr.Message)
}
