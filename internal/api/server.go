package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ncfakude30/personal-asset-manager/internal/apperr"
	"github.com/ncfakude30/personal-asset-manager/internal/auth"
	"github.com/ncfakude30/personal-asset-manager/internal/db"
	"github.com/ncfakude30/personal-asset-manager/internal/portfolio"
)

type Server struct {
	Auth      Exchanger
	Verifier  auth.Verifier
	Portfolio Portfolio
}

type Exchanger interface {
	Exchange(ctx context.Context, identityToken string) (auth.SessionToken, error)
}

type Portfolio interface {
	CalculateValue(ctx context.Context, userID string) (portfolio.Valuation, error)
	GetAssetHistory(ctx context.Context, assetID string) ([]db.PriceRecord, error)
}

type contextKey string

const userIDContextKey contextKey = "userID"

func NewServer(exchanger Exchanger, verifier auth.Verifier, portfolio Portfolio) *Server {
	return &Server{Auth: exchanger, Verifier: verifier, Portfolio: portfolio}
}

func (s *Server) Mount(r chi.Router) {
	r.Post("/auth", s.handleExchange)
	r.Route("/portfolio", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleGetPortfolio)
		r.Get("/asset/{assetID}/history", s.handleGetAssetHistory)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing auth token")
			return
		}

		claims, err := s.Verifier.Verify(r.Context(), token)
		if err != nil {
			writeServiceError(w, err, "invalid auth token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey).(string)
	return strings.TrimSpace(userID)
}

func extractToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, apiError{Error: message})
}

// writeServiceError maps a failure kind to a status. Client faults echo the
// failure message; server faults are logged and answered with fallback.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindUnauthenticated {
		message := appErr.Msg
		if message == "" {
			message = fallback
		}
		writeError(w, http.StatusUnauthorized, message)
		return
	}

	slog.Error("request failed", "kind", string(apperr.KindOf(err)), "error", err)
	writeError(w, http.StatusInternalServerError, fallback)
}

func decodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

type exchangeRequest struct {
	Token string `json:"token"`
}

type exchangeResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.Auth.Exchange(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, err, "failed to issue session token")
		return
	}

	writeJSON(w, http.StatusOK, exchangeResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type portfolioResponse struct {
	TotalValue json.Number `json:"totalValue"`
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	valuation, err := s.Portfolio.CalculateValue(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "failed to calculate portfolio value")
		return
	}

	writeJSON(w, http.StatusOK, portfolioResponse{TotalValue: json.Number(valuation.TotalValue.String())})
}

type priceRecordResponse struct {
	AssetID string      `json:"asset_id"`
	Date    string      `json:"date"`
	Price   json.Number `json:"price"`
}

func (s *Server) handleGetAssetHistory(w http.ResponseWriter, r *http.Request) {
	assetID, err := parseAssetID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	history, err := s.Portfolio.GetAssetHistory(r.Context(), assetID)
	if err != nil {
		writeServiceError(w, err, "failed to fetch asset history")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse(history))
}

func historyResponse(history []db.PriceRecord) []priceRecordResponse {
	response := make([]priceRecordResponse, 0, len(history))
	for _, record := range history {
		response = append(response, priceRecordResponse{
			AssetID: record.AssetID,
			Date:    record.Date.UTC().Format(time.DateOnly),
			Price:   json.Number(record.Price.String()),
		})
	}
	return response
}

func parseAssetID(r *http.Request) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, "assetID"))
	parsed, err := uuid.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid asset id %q", value)
	}
	return parsed.String(), nil
}
