package middleware

import "net/http"

// NewCORSMiddleware は全オリジンを許可するCORSミドルウェアを返す。
// フロントエンドは別ホストで配信されるため、プリフライトと本リクエストの
// 両方を任意のオリジンから受け付ける。認証はCookieではなくbearerトークンで
// 行うため、credentialsなしのワイルドカード許可で成立する。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
