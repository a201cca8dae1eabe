package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/easyfolio/easyfolio/internal/service"
)

// marketIndices are the benchmark quotes served by /api/market/indices.
var marketIndices = []struct {
	Symbol string
	Name   string
}{
	{"^GSPC", "S&P 500"},
	{"^DJI", "Dow Jones"},
	{"^IXIC", "NASDAQ"},
	{"BTC-USD", "Bitcoin"},
	{"ETH-USD", "Ethereum"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func querySymbol(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("symbol"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.svc.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"api_key":      cfg.MaskedAPIKey(),
		"base_url":     cfg.BaseURL,
		"model_name":   cfg.ModelName,
		"llm_provider": cfg.LLMProvider,
		"is_demo":      s.svc.IsDemo(),
	})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey    string `json:"api_key"`
		BaseURL   string `json:"base_url"`
		ModelName string `json:"model_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.svc.ApplyModelConfig(r.Context(), req.APIKey, req.BaseURL, req.ModelName)

	if s.persist != nil {
		if err := s.persist(*s.svc.Config()); err != nil {
			s.log.Warn().Err(err).Msg("config not persisted")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Configuration updated",
		"is_demo": s.svc.IsDemo(),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := querySymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	quote, err := s.svc.Quote(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := querySymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	days := 365
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	rows, err := s.svc.History(r.Context(), symbol, days)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"data":   rows,
	})
}

// handleIndices returns best-effort quotes for the benchmark symbols.
// Symbols whose providers fail are omitted rather than failing the whole
// response.
func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	type indexQuote struct {
		Name string `json:"name"`
		*service.QuoteResult
	}

	quotes := make([]indexQuote, 0, len(marketIndices))
	for _, idx := range marketIndices {
		quote, err := s.svc.Quote(r.Context(), idx.Symbol)
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", idx.Symbol).Msg("index quote unavailable")
			continue
		}
		quotes = append(quotes, indexQuote{Name: idx.Name, QuoteResult: quote})
	}
	writeJSON(w, http.StatusOK, map[string]any{"indices": quotes})
}

// handleAnalyze streams the advisory narrative as plain text chunks. The run
// ID is exposed in a header so a client can fetch the transcript later.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := querySymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	simDate := strings.TrimSpace(r.URL.Query().Get("sim_date"))

	stream, runID := s.svc.Analyze(r.Context(), symbol, simDate)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Run-ID", runID)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for chunk := range stream {
		if _, err := w.Write([]byte(chunk)); err != nil {
			// Client went away. Keep draining so the recorder sees the
			// full run.
			for range stream {
			}
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	symbol := querySymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Summary(r.Context(), symbol))
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol      string  `json:"symbol"`
		TotalBudget float64 `json:"total_budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	pos, err := s.svc.SetBudget(req.Symbol, req.TotalBudget)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol     string  `json:"symbol"`
		Date       string  `json:"date"`
		Units      int     `json:"units"`
		Price      float64 `json:"price"`
		Conclusion string  `json:"conclusion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	pos, err := s.svc.AddRecord(req.Symbol, req.Date, req.Units, req.Price, req.Conclusion)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	symbol := querySymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	if !s.svc.DeleteRecord(symbol, index) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Record deleted"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	symbol := querySymbol(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	if !s.svc.Clear(symbol) {
		writeError(w, http.StatusNotFound, "no position for symbol")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var cursor int64
	if v := r.URL.Query().Get("cursor"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cursor must be an integer")
			return
		}
		cursor = parsed
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	runs, err := s.svc.Runs(r.Context(), cursor, limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	type runView struct {
		ID            string `json:"id"`
		Symbol        string `json:"symbol"`
		SimulatedDate string `json:"simulated_date,omitempty"`
		Status        string `json:"status"`
		CreatedAt     string `json:"created_at"`
		Cursor        int64  `json:"cursor"`
	}
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView{
			ID:            run.ID,
			Symbol:        run.Symbol,
			SimulatedDate: run.SimulatedDate,
			Status:        run.Status,
			CreatedAt:     run.CreatedAt,
			Cursor:        run.RowID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	transcript, err := s.svc.Transcript(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"run_id":     runID,
		"transcript": transcript,
	})
}
