package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruralpay/banksim/internal/logging"
	mW "github.com/ruralpay/banksim/internal/middleware"
	"github.com/ruralpay/banksim/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig collects everything the HTTP surface needs.
type RouterConfig struct {
	Accounts *services.AccountService
	Ledger   *services.LedgerService
	QR       *services.QRService
	ISO20022 *services.ISO20022Service

	Logger         *logging.Logger
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Health reports component states for /health, e.g. the event breaker.
	Health func() map[string]string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoOpLogger()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.SecurityHeaders)
	r.Use(mW.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "healthy"}
		if cfg.Health != nil {
			for k, v := range cfg.Health() {
				body[k] = v
			}
		}
		writeJSON(w, http.StatusOK, body)
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	accountHandler := NewAccountHandler(cfg.Accounts, cfg.Ledger)
	var perAccount []func(chi.Router)
	if cfg.QR != nil {
		qrHandler := NewQRHandler(cfg.QR)
		perAccount = append(perAccount, func(r chi.Router) {
			r.Get("/qr", qrHandler.AccountQR)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			accountHandler.Routes(r, perAccount...)
		})
		if cfg.ISO20022 != nil {
			r.Route("/transactions", NewExportHandler(cfg.ISO20022).Routes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		services.SendErrorResponse(w, "route not found", http.StatusNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		services.SendErrorResponse(w, "method not allowed", http.StatusMethodNotAllowed, nil)
	})

	return r
}
