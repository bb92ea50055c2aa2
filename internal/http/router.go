package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saadkhan2003/masjid-ledger/internal/http/debt"
	"github.com/saadkhan2003/masjid-ledger/internal/http/importcsv"
	"github.com/saadkhan2003/masjid-ledger/internal/http/ledger"
	"github.com/saadkhan2003/masjid-ledger/internal/http/member"
	"github.com/saadkhan2003/masjid-ledger/internal/http/offline"
	"github.com/saadkhan2003/masjid-ledger/internal/http/payment"
	"github.com/saadkhan2003/masjid-ledger/internal/http/report"
)

type Handlers struct {
	Members  *member.Handler
	Payments *payment.Handler
	Debts    *debt.Handler
	Ledger   *ledger.Handler
	Reports  *report.Handler
	Import   *importcsv.Handler
	Sync     *offline.Handler
}

type Options struct {
	AllowedOrigins []string
	Timeout        time.Duration
	// Gatherer serves /metrics. Nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
}

func New(h Handlers, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/members", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Members.Routes(r)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Payments.Routes(r)
		})

		r.Route("/debts", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Debts.Routes(r)
		})

		r.Route("/ledger", h.Ledger.Routes)
		r.Route("/reports", h.Reports.Routes)
		r.Route("/import", h.Import.Routes)

		r.Route("/sync", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Sync.Routes(r)
		})
	})

	return router
}
