// Package server exposes a read-only HTTP view of review data for operators.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lollopanta/simpleReviewBot/internal/apperr"
	"github.com/lollopanta/simpleReviewBot/internal/audit"
	"github.com/lollopanta/simpleReviewBot/internal/storage"
	"github.com/lollopanta/simpleReviewBot/internal/workflow"
)

const (
	defaultStaffDays = 30
	maxStaffDays     = 365
)

type ProductLister interface {
	List(ctx context.Context, guildID string, includeInactive bool) ([]*storage.Product, error)
}

type StaffStatser interface {
	StatsFor(ctx context.Context, guildID, staffID string, windowDays int) ([]audit.StaffStats, error)
}

type Overviewer interface {
	GuildOverview(ctx context.Context, guildID string) (*workflow.GuildOverview, error)
}

// Server is the ops HTTP endpoint
type Server struct {
	products ProductLister
	staff    StaffStatser
	overview Overviewer
	http     *http.Server
}

// New creates a server listening on addr
func New(addr string, products ProductLister, staff StaffStatser, overview Overviewer) *Server {
	s := &Server{products: products, staff: staff, overview: overview}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Route("/guilds/{guildID}", func(r chi.Router) {
		r.Get("/products", s.listProducts)
		r.Get("/stats/staff", s.staffStats)
		r.Get("/stats/overview", s.guildOverview)
	})
	return router
}

// Start serves in the background
func (s *Server) Start() {
	slog.Info("Starting ops server", "addr", s.http.Addr)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Ops server failed", "error", err)
		}
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type productResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	ReviewCount   int     `json:"reviewCount"`
	AverageRating float64 `json:"averageRating"`
	Active        bool    `json:"active"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	products, err := s.products.List(r.Context(), chi.URLParam(r, "guildID"), includeInactive)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for idx, p := range products {
		out[idx] = productResponse{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Price:         p.Price,
			ReviewCount:   p.ReviewCount,
			AverageRating: p.AverageRating,
			Active:        p.Active,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type staffStatsResponse struct {
	StaffMemberID       string         `json:"staffMemberId"`
	StaffMemberUsername string         `json:"staffMemberUsername"`
	TotalActions        int            `json:"totalActions"`
	Actions             map[string]int `json:"actions"`
	AvgApprovalTimeMs   *int64         `json:"avgApprovalTimeMs,omitempty"`
}

func (s *Server) staffStats(w http.ResponseWriter, r *http.Request) {
	days := defaultStaffDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxStaffDays {
			writeError(w, r, apperr.ErrInvalidInput)
			return
		}
		days = n
	}

	stats, err := s.staff.StatsFor(r.Context(), chi.URLParam(r, "guildID"), r.URL.Query().Get("staff"), days)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]staffStatsResponse, len(stats))
	for idx, st := range stats {
		actions := make(map[string]int, len(st.Counts))
		for action, n := range st.Counts {
			actions[string(action)] = n
		}
		out[idx] = staffStatsResponse{
			StaffMemberID:       st.StaffMemberID,
			StaffMemberUsername: st.StaffMemberUsername,
			TotalActions:        st.TotalActions,
			Actions:             actions,
		}
		if st.AvgApprovalTime != nil {
			ms := st.AvgApprovalTime.Milliseconds()
			out[idx].AvgApprovalTimeMs = &ms
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type overviewResponse struct {
	TotalReviews     int            `json:"totalReviews"`
	AverageRating    float64        `json:"averageRating"`
	ActiveProducts   int            `json:"activeProducts"`
	ReviewsByStatus  map[string]int `json:"reviewsByStatus"`
	RequestsByStatus map[string]int `json:"requestsByStatus"`
	ApprovalRate     float64        `json:"approvalRate"`
}

func (s *Server) guildOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.overview.GuildOverview(r.Context(), chi.URLParam(r, "guildID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := overviewResponse{
		TotalReviews:     o.TotalReviews,
		AverageRating:    o.AverageRating,
		ActiveProducts:   o.ActiveProducts,
		ReviewsByStatus:  make(map[string]int, len(o.ReviewsByStatus)),
		RequestsByStatus: make(map[string]int, len(o.RequestsByStatus)),
		ApprovalRate:     o.ApprovalRate,
	}
	for status, n := range o.ReviewsByStatus {
		resp.ReviewsByStatus[string(status)] = n
	}
	for status, n := range o.RequestsByStatus {
		resp.RequestsByStatus[string(status)] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status, msg = http.StatusNotFound, err.Error()
	case apperr.KindValidation:
		status, msg = http.StatusBadRequest, err.Error()
	case apperr.KindForbidden:
		status, msg = http.StatusForbidden, err.Error()
	case apperr.KindConflict:
		status, msg = http.StatusConflict, err.Error()
	default:
		slog.Error("Ops request failed", "path", r.URL.Path, "requestID", middleware.GetReqID(r.Context()), "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through slog
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}
