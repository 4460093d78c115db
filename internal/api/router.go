// internal/api/router.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tenant-ledger/internal/api/handler"
	"tenant-ledger/internal/api/middleware"
	"tenant-ledger/internal/api/types"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Wallet     *handler.WalletHandler
	AiToken    *handler.AiTokenHandler
	Provider   *handler.ProviderHandler
	Commission *handler.CommissionHandler
	Webhook    *handler.WebhookHandler
}

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	Tokens         *middleware.TokenService
	AllowedOrigins []string
}

// NewRouter sets up and returns a new HTTP router.
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(handler.DefaultTimeout))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		types.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Gateways call these directly; the payload signature authenticates them.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/stripe", h.Webhook.Stripe)
		r.Post("/stripe/{configID}", h.Webhook.StripeTenant)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Tokens))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balances", h.Wallet.Balances)
			r.Get("/{kind}/transactions", h.Wallet.Transactions)
			r.Post("/topup/intent", h.Wallet.TopUpIntent)
			r.Post("/topup/checkout", h.Wallet.TopUpCheckout)
		})

		r.Route("/ai-tokens", func(r chi.Router) {
			r.Get("/balance", h.AiToken.Balance)
			r.Get("/packages", h.AiToken.Packages)
			r.Get("/packages/{id}", h.AiToken.Package)
			r.Post("/purchase", h.AiToken.Purchase)
			r.Post("/consume", h.AiToken.Consume)
			r.Post("/free-monthly", h.AiToken.FreeMonthly)
			r.Post("/auto-topup/check", h.AiToken.CheckAutoTopUp)
			r.Get("/settings", h.AiToken.GetSettings)
			r.Put("/settings", h.AiToken.UpdateSettings)
			r.Get("/usage", h.AiToken.Usage)
		})

		r.Route("/payment-providers", func(r chi.Router) {
			r.Get("/", h.Provider.List)
			r.Post("/{provider}/enable", h.Provider.Enable)
			r.Post("/{provider}/disable", h.Provider.Disable)
			r.Post("/{provider}/default", h.Provider.SetDefault)
			r.Post("/{provider}/charge", h.Provider.Charge)
			r.Post("/{provider}/complete", h.Provider.Complete)
			r.Post("/{provider}/refund", h.Provider.Refund)
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", h.Commission.List)
			r.Get("/summary", h.Commission.Summary)
			r.Get("/quote", h.Commission.Quote)
		})
	})

	return r
}
