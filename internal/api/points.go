package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/inkwell-notes/inkwell/internal/domain"
)

// ─── Points API ─────────────────────────────────────────────────────────────
// GET  /api/points              balance, history, streak, daily reward
// POST /api/points/earn         credit points (never the daily category)
// POST /api/points/spend        debit points (402 when refused)
// GET  /api/points/afford?amount=N
// POST /api/points/daily        claim today's login reward

type pointsRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	l := s.app.Ledger
	streak, lastLogin := l.Streak()
	resp := map[string]interface{}{
		"balance": l.Balance(),
		"history": l.History(),
		"streak":  streak,
	}
	if !lastLogin.IsZero() {
		resp["last_login"] = lastLogin.Format(time.RFC3339)
	}
	if last, ok := l.LastDailyReward(); ok {
		resp["last_daily_reward"] = last.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEarn(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if domain.Category(req.Category) == domain.CategoryDaily {
		writeError(w, http.StatusBadRequest, domain.ErrReservedCategory.Error())
		return
	}
	tx, err := s.app.Ledger.Earn(req.Amount, req.Description, domain.Category(req.Category))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidAmount) || errors.Is(err, domain.ErrInvalidCategory) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": tx,
		"balance":     s.app.Ledger.Balance(),
	})
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidAmount.Error())
		return
	}
	if _, err := domain.ParseCategory(req.Category); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.app.Ledger.Spend(req.Amount, req.Description, domain.Category(req.Category)) {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error": map[string]interface{}{
				"message": domain.ErrInsufficientPoints.Error(),
				"type":    "insufficient_points",
			},
			"balance": s.app.Ledger.Balance(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance": s.app.Ledger.Balance(),
	})
}

func (s *Server) handleAfford(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":     amount,
		"can_afford": s.app.Ledger.CanAfford(amount),
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	res := s.app.Ledger.CheckDailyReward()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"granted": res.Granted,
		"base":    res.Base,
		"bonus":   res.Bonus,
		"total":   res.Total(),
		"streak":  res.Streak,
		"balance": s.app.Ledger.Balance(),
	})
}
