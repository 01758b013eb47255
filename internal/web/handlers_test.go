package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avicke/foliotrack/internal/auth"
	"github.com/avicke/foliotrack/internal/config"
	"github.com/avicke/foliotrack/internal/ledger"
	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/notify"
	"github.com/avicke/foliotrack/internal/pricing"
	"github.com/avicke/foliotrack/internal/storage"
	"github.com/avicke/foliotrack/internal/valuation"
)

type stubOracle struct {
	prices map[string]decimal.Decimal
}

func (o stubOracle) LookupPrice(_ context.Context, symbol string, _ storage.AssetClass) (decimal.Decimal, error) {
	price, ok := o.prices[symbol]
	if !ok {
		return decimal.Decimal{}, pricing.ErrUnavailable
	}
	return price, nil
}

func newTestServer(t *testing.T, prices map[string]decimal.Decimal) *Server {
	t.Helper()

	db, err := storage.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	repo := storage.NewRepository(db)
	log := logger.New("error")
	oracle := stubOracle{prices: prices}

	cfg := &config.Config{}
	authSvc := auth.NewService(repo, time.Hour, log)
	led := ledger.New(repo, oracle, log)
	engine := valuation.NewEngine(oracle, 2, log)
	notifier := notify.New(cfg, log)

	return NewServer(authSvc, led, engine, repo, notifier, cfg, log)
}

func (s *Server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func loginAs(t *testing.T, s *Server, username string) string {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": username, "password": "pw", "confirmation": "pw",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": username, "password": "pw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[map[string]string](t, rec)["token"]
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/portfolio", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestServer(t, nil)
	loginAs(t, s, "alice")

	rec := s.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice", "password": "pw", "confirmation": "pw",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", rec.Code)
	}
}

func TestBuyPortfolioSellFlow(t *testing.T) {
	s := newTestServer(t, map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	token := loginAs(t, s, "alice")

	// Two buys fold into one weighted-average position.
	rec := s.do(t, http.MethodPost, "/api/portfolio/buy", token, map[string]any{
		"symbol": "aapl", "asset_class": "stock", "quantity": "2", "buy_price": "50",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("first buy: status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, "/api/portfolio/buy", token, map[string]any{
		"symbol": "AAPL", "asset_class": "stock", "quantity": "3", "buy_price": "60",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("second buy: status %d, body %s", rec.Code, rec.Body.String())
	}
	pos := decodeBody[positionView](t, rec)
	if pos.Symbol != "AAPL" || !pos.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("position after buys: %+v", pos)
	}
	if !pos.AverageCost.Equal(decimal.NewFromInt(56)) {
		t.Errorf("average cost = %s, want 56", pos.AverageCost)
	}

	rec = s.do(t, http.MethodGet, "/api/portfolio", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("portfolio: status %d, body %s", rec.Code, rec.Body.String())
	}
	pf := decodeBody[portfolioResponse](t, rec)
	if len(pf.Positions) != 1 {
		t.Fatalf("portfolio positions: %+v", pf.Positions)
	}
	if !pf.TotalValue.Equal(decimal.NewFromInt(750)) {
		t.Errorf("total value = %s, want 750", pf.TotalValue)
	}

	// Partial sell leaves the average cost untouched.
	rec = s.do(t, http.MethodPost, "/api/portfolio/sell", token, map[string]any{
		"symbol": "AAPL", "asset_class": "stock", "quantity": "2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sell: status %d, body %s", rec.Code, rec.Body.String())
	}
	sold := decodeBody[sellResponse](t, rec)
	if sold.Closed || sold.Position == nil {
		t.Fatalf("partial sell reported closed: %+v", sold)
	}
	if !sold.Position.Quantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("remaining quantity = %s, want 3", sold.Position.Quantity)
	}
	if !sold.Transaction.RealizedPnL.Equal(decimal.NewFromInt(188)) {
		t.Errorf("realized pnl = %s, want 188", sold.Transaction.RealizedPnL)
	}

	// Closing sell deletes the row.
	rec = s.do(t, http.MethodPost, "/api/portfolio/sell", token, map[string]any{
		"symbol": "AAPL", "asset_class": "stock", "quantity": "3",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("closing sell: status %d, body %s", rec.Code, rec.Body.String())
	}
	sold = decodeBody[sellResponse](t, rec)
	if !sold.Closed || sold.Position != nil {
		t.Fatalf("closing sell not reported closed: %+v", sold)
	}

	rec = s.do(t, http.MethodGet, "/api/transactions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions: status %d", rec.Code)
	}
	txs := decodeBody[[]transactionView](t, rec)
	if len(txs) != 2 {
		t.Errorf("expected 2 sell records, got %d", len(txs))
	}
}

func TestSellErrors(t *testing.T) {
	s := newTestServer(t, map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})
	token := loginAs(t, s, "alice")

	rec := s.do(t, http.MethodPost, "/api/portfolio/sell", token, map[string]any{
		"symbol": "AAPL", "asset_class": "stock", "quantity": "1",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("sell of missing position: status = %d, want 404", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/portfolio/buy", token, map[string]any{
		"symbol": "GHOST", "asset_class": "stock", "quantity": "1", "buy_price": "10",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy: status %d, body %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodPost, "/api/portfolio/sell", token, map[string]any{
		"symbol": "GHOST", "asset_class": "stock", "quantity": "1",
	})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("sell without a quote: status = %d, want 502", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/portfolio/buy", token, map[string]any{
		"symbol": "AAPL", "asset_class": "stock", "quantity": "-1", "buy_price": "10",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative buy quantity: status = %d, want 400", rec.Code)
	}
}

func TestPositionPutAndDelete(t *testing.T) {
	s := newTestServer(t, nil)
	token := loginAs(t, s, "alice")

	rec := s.do(t, http.MethodPut, "/api/portfolio/position", token, map[string]any{
		"symbol": "AAPL", "asset_class": "stock", "quantity": "5", "average_cost": "100",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("put on missing position: status = %d, want 404", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/portfolio/buy", token, map[string]any{
		"symbol": "AAPL", "asset_class": "stock", "quantity": "1", "buy_price": "10",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("buy: status %d", rec.Code)
	}

	rec = s.do(t, http.MethodPut, "/api/portfolio/position", token, map[string]any{
		"symbol": "AAPL", "asset_class": "stock", "quantity": "5", "average_cost": "100",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put: status %d, body %s", rec.Code, rec.Body.String())
	}
	pos := decodeBody[positionView](t, rec)
	if !pos.Quantity.Equal(decimal.NewFromInt(5)) || !pos.AverageCost.Equal(decimal.NewFromInt(100)) {
		t.Errorf("overwritten position: %+v", pos)
	}

	rec = s.do(t, http.MethodDelete, "/api/portfolio/position?symbol=AAPL&class=stock", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	// Removing it again stays a no-op.
	rec = s.do(t, http.MethodDelete, "/api/portfolio/position?symbol=AAPL&class=stock", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("repeat delete: status = %d, want 204", rec.Code)
	}
}

func TestPortfolioFilterAndSortParams(t *testing.T) {
	s := newTestServer(t, map[string]decimal.Decimal{
		"AAPL":    decimal.NewFromInt(10),
		"BITCOIN": decimal.NewFromInt(100),
	})
	token := loginAs(t, s, "alice")

	buys := []map[string]any{
		{"symbol": "AAPL", "asset_class": "stock", "quantity": "1", "buy_price": "5"},
		{"symbol": "bitcoin", "asset_class": "crypto", "quantity": "2", "buy_price": "50"},
	}
	for _, b := range buys {
		if rec := s.do(t, http.MethodPost, "/api/portfolio/buy", token, b); rec.Code != http.StatusOK {
			t.Fatalf("buy %v: status %d", b, rec.Code)
		}
	}

	rec := s.do(t, http.MethodGet, "/api/portfolio?class=crypto", token, nil)
	pf := decodeBody[portfolioResponse](t, rec)
	if len(pf.Positions) != 1 || pf.Positions[0].Symbol != "BITCOIN" {
		t.Errorf("class filter returned %+v", pf.Positions)
	}

	rec = s.do(t, http.MethodGet, "/api/portfolio?sort=current_value", token, nil)
	pf = decodeBody[portfolioResponse](t, rec)
	if len(pf.Positions) != 2 || pf.Positions[0].Symbol != "BITCOIN" {
		t.Errorf("sort by current value returned %+v", pf.Positions)
	}

	rec = s.do(t, http.MethodGet, "/api/portfolio?class=bond", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown class: status = %d, want 400", rec.Code)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	s := newTestServer(t, nil)
	token := loginAs(t, s, "alice")

	rec := s.do(t, http.MethodPost, "/api/logout", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/portfolio", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout: status = %d, want 401", rec.Code)
	}
}
