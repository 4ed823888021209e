package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fiffu/pricewatch/config"
	"github.com/fiffu/pricewatch/lib/extract"
	"github.com/fiffu/pricewatch/lib/monitor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	errNotFound  = errors.New("product not found or no price available")
	errBadID     = errors.New("invalid product id")
	errBadUserID = errors.New("invalid user_id")
)

// PriceMonitor is what the HTTP boundary needs from the monitor.
type PriceMonitor interface {
	CheckProduct(ctx context.Context, productID uint) (*extract.Result, error)
	Refresh(ctx context.Context, productID uint) (*extract.Result, error)
	CheckAllProducts(ctx context.Context, userID *uint) ([]monitor.CheckResult, error)
	GetStats(ctx context.Context, productID uint) (*monitor.Stats, error)
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, mon *monitor.Monitor) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, mon)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Sugar().Errorw("HTTP server stopped", "err", err)
				}
			}()
			log.Sugar().Infow("HTTP server listening", "addr", addr)
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, mon PriceMonitor) http.Handler {
	ctrl := &controller{log, mon}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.CORSOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("pricewatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Post("/check-all", ctrl.checkAll)
		r.Route("/products/{product_id}", func(r chi.Router) {
			r.Post("/check", ctrl.check)
			r.Post("/refresh", ctrl.refresh)
			r.Get("/stats", ctrl.stats)
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	mon PriceMonitor
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "error", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

func (ctrl *controller) check(w http.ResponseWriter, r *http.Request) {
	ctrl.runCheck(w, r, ctrl.mon.CheckProduct)
}

func (ctrl *controller) refresh(w http.ResponseWriter, r *http.Request) {
	ctrl.runCheck(w, r, ctrl.mon.Refresh)
}

func (ctrl *controller) runCheck(w http.ResponseWriter, r *http.Request, fn func(context.Context, uint) (*extract.Result, error)) {
	productID, ok := parseID(chi.URLParam(r, "product_id"))
	if !ok {
		ctrl.reject(w, http.StatusBadRequest, errBadID)
		return
	}

	result, err := fn(r.Context(), productID)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	if result == nil {
		ctrl.reject(w, http.StatusNotFound, errNotFound)
		return
	}
	ctrl.resolve(w, http.StatusOK, PriceView{}.From(productID, result))
}

func (ctrl *controller) checkAll(w http.ResponseWriter, r *http.Request) {
	var userID *uint
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			ctrl.reject(w, http.StatusBadRequest, errBadUserID)
			return
		}
		userID = &id
	}

	results, err := ctrl.mon.CheckAllProducts(r.Context(), userID)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, BatchView{}.From(results))
}

func (ctrl *controller) stats(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseID(chi.URLParam(r, "product_id"))
	if !ok {
		ctrl.reject(w, http.StatusBadRequest, errBadID)
		return
	}

	stats, err := ctrl.mon.GetStats(r.Context(), productID)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	if stats == nil {
		ctrl.reject(w, http.StatusNotFound, errNotFound)
		return
	}
	ctrl.resolve(w, http.StatusOK, StatsView{}.From(stats))
}

func parseID(s string) (uint, bool) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil || u == 0 {
		return 0, false
	}
	return uint(u), true
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
