package middleware

import (
	"encoding/json"
	"net/http"
)

// errorResponseBody はAPIエラーレスポンスの統一フォーマット。
// クライアントにはメッセージ文字列のみを返す。
type errorResponseBody struct {
	Error string `json:"error"`
}

// WriteError は統一フォーマット{"error": "..."}でHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponseBody{Error: message})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "Internal server error")
}
