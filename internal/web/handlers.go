package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/camuig/sol-tracker/internal/storage"
	"github.com/camuig/sol-tracker/internal/strategy"
)

const (
	defaultClosedLimit = 20
	maxClosedLimit     = 500
)

// HoldingView is a holding with the tiers that would fire next for it.
type HoldingView struct {
	storage.Holding
	NextStopLoss   *strategy.Tier `json:"next_stop_loss"`
	NextTakeProfit *strategy.Tier `json:"next_take_profit"`
	TiersFired     int            `json:"tiers_fired"`
}

type DashboardData struct {
	Bot      string
	Mode     string
	Strategy string
	DailyPnL float64
	TotalPnL float64
	WinRate  float64
	Settled  int64
	Holdings []HoldingView
	Recent   []storage.ProfitLoss
}

var templateFuncs = template.FuncMap{
	"usd": func(v float64) string { return fmt.Sprintf("%+.2f", v) },
	"price": func(v float64) string {
		return fmt.Sprintf("%.6g", v)
	},
	"pct":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"short": shortMint,
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return time.Since(t).Truncate(time.Second).String()
	},
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := DashboardData{
		Bot:      s.config.Bot.Name,
		Mode:     s.config.Mode(),
		Strategy: s.config.Strategy.Name,
	}

	if dailyPnL, err := s.repo.GetTodayPnL(); err == nil {
		data.DailyPnL = dailyPnL
	}
	if totalPnL, err := s.repo.GetTotalPnL(); err == nil {
		data.TotalPnL = totalPnL
	}
	if rate, n, err := s.repo.GetWinRate(); err == nil {
		data.WinRate = rate
		data.Settled = n
	}

	holdings, err := s.holdingViews()
	if err != nil {
		s.logger.Error("load holdings for dashboard", "error", err)
	}
	data.Holdings = holdings

	if closed, err := s.repo.GetRecentClosed(defaultClosedLimit); err == nil {
		data.Recent = closed
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.dashboard.Execute(w, data); err != nil {
		s.logger.Error("execute template", "error", err)
	}
}

func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	views, err := s.holdingViews()
	if err != nil {
		s.logger.Error("load holdings", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, views)
}

func (s *Server) handleClosed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultClosedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxClosedLimit)
	}

	closed, err := s.repo.GetRecentClosed(limit)
	if err != nil {
		s.logger.Error("load closed positions", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, closed)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) holdingViews() ([]HoldingView, error) {
	holdings, err := s.repo.GetHoldings()
	if err != nil {
		return nil, err
	}
	views := make([]HoldingView, 0, len(holdings))
	for _, h := range holdings {
		state, err := s.repo.ExecutionState(h.ID)
		if err != nil {
			return nil, fmt.Errorf("execution state %s: %w", h.TokenMint, err)
		}
		next := strategy.Preview(s.config.Strategy, state)
		views = append(views, HoldingView{
			Holding:        h,
			NextStopLoss:   next.StopLoss,
			NextTakeProfit: next.TakeProfit,
			TiersFired:     state.Len(),
		})
	}
	return views, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + ".." + mint[len(mint)-4:]
}
