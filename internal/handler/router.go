package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kyro2829/safe-senior-care/internal/metrics"
	"github.com/kyro2829/safe-senior-care/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder  middleware.SessionFinder
	RateLimiter    *middleware.RateLimiter
	StatusReporter middleware.StatusReporter
	Logger         *slog.Logger

	// サービス
	AuthService      AuthServiceInterface
	RoleResolver     RoleResolverInterface
	ProvisionService ProvisionServiceInterface
	Relationships    RelationshipReader

	// 運用
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (Session → RateLimit)
//
// サインアップ・サインインと/health、/metricsは認証グループの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusReporter))

	authHandler := NewAuthHandler(deps.AuthService, deps.RoleResolver)
	provisionHandler := NewProvisionHandler(deps.ProvisionService)
	patientHandler := NewPatientHandler(deps.Relationships)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.SignUp)
		r.Post("/signin", authHandler.SignIn)

		// --- 認証が必要なセッション操作 ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
			r.Post("/signout", authHandler.SignOut)
			r.Get("/me", authHandler.Me)
		})
	})

	// --- 認証が必要なAPIルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/patients", func(r chi.Router) {
			// POST /api/patients - 患者アカウント作成（特権RPC、専用レート制限を追加）
			r.With(deps.RateLimiter.ProvisionMiddleware()).Post("/", provisionHandler.CreatePatient)

			// GET /api/patients - 介護者の担当患者一覧
			r.Get("/", patientHandler.ListPatients)
		})

		// GET /api/caregivers - 患者の担当介護者一覧
		r.Get("/api/caregivers", patientHandler.ListCaregivers)
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
