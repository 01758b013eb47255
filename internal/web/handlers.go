package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avicke/foliotrack/internal/auth"
	"github.com/avicke/foliotrack/internal/ledger"
	"github.com/avicke/foliotrack/internal/storage"
	"github.com/avicke/foliotrack/internal/valuation"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sessionToken accepts "Authorization: Bearer <token>" or the session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

func (s *Server) requireAuth(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		owner, ok := s.auth.OwnerForToken(token)
		if !ok {
			httpError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		next(w, r, owner)
	}
}

func (s *Server) ledgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		httpError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrPositionNotFound):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrPriceUnavailable):
		httpError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("ledger operation failed", "error", err)
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseClass(raw string) (storage.AssetClass, bool) {
	class := storage.AssetClass(strings.ToLower(strings.TrimSpace(raw)))
	return class, class.Valid()
}

// Accounts

type registerRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	user, err := s.auth.Register(req.Username, req.Password, req.Confirmation)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "username": user.Username})
	case errors.Is(err, auth.ErrUsernameTaken):
		httpError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordMismatch):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("register failed", "error", err)
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httpError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.logger.Error("login failed", "error", err)
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.auth.Logout(sessionToken(r))
	w.WriteHeader(http.StatusNoContent)
}

// Portfolio

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter := valuation.Filter{Symbol: r.URL.Query().Get("symbol")}
	if raw := r.URL.Query().Get("class"); raw != "" {
		class, ok := parseClass(raw)
		if !ok {
			httpError(w, http.StatusBadRequest, "unknown asset class "+strconv.Quote(raw))
			return
		}
		filter.Class = class
	}
	sortKey := valuation.SortKey(r.URL.Query().Get("sort"))

	positions, err := s.repo.ListPositions(ownerID)
	if err != nil {
		s.logger.Error("list positions", "error", err)
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}

	pf := s.engine.ValuePortfolio(r.Context(), positions, filter, sortKey)
	writeJSON(w, http.StatusOK, newPortfolioResponse(pf))
}

type buyRequest struct {
	Symbol     string          `json:"symbol"`
	AssetClass string          `json:"asset_class"`
	Quantity   decimal.Decimal `json:"quantity"`
	BuyPrice   decimal.Decimal `json:"buy_price"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	pos, err := s.ledger.ApplyBuy(r.Context(), ownerID, req.Symbol,
		storage.AssetClass(strings.ToLower(req.AssetClass)), req.Quantity, req.BuyPrice)
	if err != nil {
		s.ledgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(pos))
}

type sellRequest struct {
	Symbol     string          `json:"symbol"`
	AssetClass string          `json:"asset_class"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type sellResponse struct {
	Transaction transactionView `json:"transaction"`
	Position    *positionView   `json:"position,omitempty"`
	Closed      bool            `json:"closed"`
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	defer r.Body.Close()

	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	tx, pos, err := s.ledger.ApplySell(r.Context(), ownerID, req.Symbol,
		storage.AssetClass(strings.ToLower(req.AssetClass)), req.Quantity)
	if err != nil {
		s.ledgerError(w, err)
		return
	}

	s.notifier.NotifySell(tx.Symbol, tx.AssetClass, tx.Quantity, tx.SalePrice, tx.RealizedPnL)

	resp := sellResponse{Transaction: newTransactionView(tx), Closed: pos == nil}
	if pos != nil {
		view := newPositionView(pos)
		resp.Position = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

type setPositionRequest struct {
	Symbol      string          `json:"symbol"`
	AssetClass  string          `json:"asset_class"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request, ownerID string) {
	switch r.Method {
	case http.MethodPut:
		defer r.Body.Close()
		var req setPositionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
			return
		}
		pos, err := s.ledger.SetPosition(ownerID, req.Symbol,
			storage.AssetClass(strings.ToLower(req.AssetClass)), req.Quantity, req.AverageCost)
		if err != nil {
			s.ledgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newPositionView(pos))

	case http.MethodDelete:
		class, ok := parseClass(r.URL.Query().Get("class"))
		if !ok {
			httpError(w, http.StatusBadRequest, "asset class is required")
			return
		}
		if err := s.ledger.RemovePosition(ownerID, r.URL.Query().Get("symbol"), class); err != nil {
			s.ledgerError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// History

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	txs, err := s.repo.ListTransactions(ownerID)
	if err != nil {
		s.logger.Error("list transactions", "error", err)
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]transactionView, 0, len(txs))
	for i := range txs {
		views = append(views, newTransactionView(&txs[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, ownerID string) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	snapshots, err := s.repo.ListSnapshots(ownerID, limit)
	if err != nil {
		s.logger.Error("list snapshots", "error", err)
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}
