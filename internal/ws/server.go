package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ncfakude30/personal-asset-manager/internal/apperr"
	"github.com/ncfakude30/personal-asset-manager/internal/auth"
	"github.com/ncfakude30/personal-asset-manager/internal/db"
	"github.com/ncfakude30/personal-asset-manager/internal/portfolio"
	"github.com/ncfakude30/personal-asset-manager/internal/telemetry"
)

const (
	scopePortfolio = "portfolio"
	scopeAsset     = "asset"

	writeTimeout = 5 * time.Second
)

type Portfolio interface {
	CalculateValue(ctx context.Context, userID string) (portfolio.Valuation, error)
	GetAssetHistory(ctx context.Context, assetID string) ([]db.PriceRecord, error)
}

type Server struct {
	Hub       *Hub
	Verifier  auth.Verifier
	Portfolio Portfolio
}

type clientMessage struct {
	Type    string `json:"type"`
	Scope   string `json:"scope,omitempty"`
	AssetID string `json:"asset_id,omitempty"`
}

type historyEntry struct {
	Date  string      `json:"date"`
	Price json.Number `json:"price"`
}

type serverMessage struct {
	Type       string         `json:"type"`
	Scope      string         `json:"scope,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	AssetID    string         `json:"asset_id,omitempty"`
	Message    string         `json:"message,omitempty"`
	TotalValue json.Number    `json:"totalValue,omitempty"`
	History    []historyEntry `json:"history,omitempty"`
}

func NewServer(hub *Hub, verifier auth.Verifier, portfolio Portfolio) *Server {
	return &Server{Hub: hub, Verifier: verifier, Portfolio: portfolio}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			telemetry.WSAuthFailure()
			http.Error(w, "missing auth token", http.StatusUnauthorized)
			return
		}
		claims, err := s.Verifier.Verify(r.Context(), token)
		if err != nil {
			telemetry.WSAuthFailure()
			if apperr.IsServerFault(apperr.KindOf(err)) {
				slog.Error("ws token verification failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			http.Error(w, "invalid auth token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "server error")

		sessionID := uuid.NewString()
		if err := s.Hub.Add(sessionID, claims.UserID); err != nil {
			telemetry.WSSessionInitFailure()
			slog.Error("ws session init failed", "error", err)
			return
		}
		defer s.Hub.Remove(sessionID)

		telemetry.WSConnectionOpened()
		defer telemetry.WSConnectionClosed()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if err := write(ctx, conn, serverMessage{Type: "ready", UserID: claims.UserID}); err != nil {
			return
		}

		for {
			var msg clientMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
					conn.Close(websocket.StatusNormalClosure, "bye")
					return
				}
				if !errors.Is(err, context.Canceled) {
					slog.Debug("ws read ended", "session_id", sessionID, "error", err)
				}
				return
			}
			if err := s.handle(ctx, conn, sessionID, claims.UserID, msg); err != nil {
				slog.Debug("ws write failed", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}

func requestToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

func (s *Server) handle(ctx context.Context, conn *websocket.Conn, sessionID, userID string, msg clientMessage) error {
	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case "subscribe":
		return s.handleSubscribe(ctx, conn, sessionID, userID, msg, true)
	case "unsubscribe":
		return s.handleSubscribe(ctx, conn, sessionID, userID, msg, false)
	case "refresh":
		return s.refresh(ctx, conn, sessionID)
	default:
		return write(ctx, conn, serverMessage{Type: "error", Message: "unknown message type"})
	}
}

func (s *Server) handleSubscribe(ctx context.Context, conn *websocket.Conn, sessionID, userID string, msg clientMessage, subscribe bool) error {
	ack := "unsubscribed"
	if subscribe {
		ack = "subscribed"
	}

	switch strings.ToLower(strings.TrimSpace(msg.Scope)) {
	case scopePortfolio:
		s.Hub.SetPortfolio(sessionID, subscribe)
		if err := write(ctx, conn, serverMessage{Type: ack, Scope: scopePortfolio}); err != nil {
			return err
		}
		if subscribe {
			return s.sendPortfolio(ctx, conn, userID)
		}
		return nil
	case scopeAsset:
		assetID, err := uuid.Parse(strings.TrimSpace(msg.AssetID))
		if err != nil {
			return write(ctx, conn, serverMessage{Type: "error", Scope: scopeAsset, Message: "asset_id must be a valid uuid"})
		}
		id := assetID.String()
		if subscribe {
			s.Hub.SubscribeAsset(sessionID, id)
		} else {
			s.Hub.UnsubscribeAsset(sessionID, id)
		}
		if err := write(ctx, conn, serverMessage{Type: ack, Scope: scopeAsset, AssetID: id}); err != nil {
			return err
		}
		if subscribe {
			return s.sendHistory(ctx, conn, id)
		}
		return nil
	default:
		return write(ctx, conn, serverMessage{Type: "error", Message: "scope must be portfolio or asset"})
	}
}

func (s *Server) refresh(ctx context.Context, conn *websocket.Conn, sessionID string) error {
	subs, ok := s.Hub.Snapshot(sessionID)
	if !ok {
		return write(ctx, conn, serverMessage{Type: "error", Message: "session not found"})
	}
	if subs.Portfolio {
		if err := s.sendPortfolio(ctx, conn, subs.UserID); err != nil {
			return err
		}
	}
	for _, assetID := range subs.AssetIDs {
		if err := s.sendHistory(ctx, conn, assetID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) sendPortfolio(ctx context.Context, conn *websocket.Conn, userID string) error {
	valuation, err := s.Portfolio.CalculateValue(ctx, userID)
	if err != nil {
		slog.Error("ws portfolio snapshot failed", "user_id", userID, "error", err)
		return write(ctx, conn, serverMessage{Type: "error", Scope: scopePortfolio, Message: "failed to calculate portfolio value"})
	}
	return write(ctx, conn, serverMessage{
		Type:       "portfolio",
		Scope:      scopePortfolio,
		TotalValue: json.Number(valuation.TotalValue.String()),
	})
}

func (s *Server) sendHistory(ctx context.Context, conn *websocket.Conn, assetID string) error {
	records, err := s.Portfolio.GetAssetHistory(ctx, assetID)
	if err != nil {
		slog.Error("ws history snapshot failed", "asset_id", assetID, "error", err)
		return write(ctx, conn, serverMessage{Type: "error", Scope: scopeAsset, AssetID: assetID, Message: "failed to fetch asset history"})
	}
	history := make([]historyEntry, 0, len(records))
	for _, record := range records {
		history = append(history, historyEntry{
			Date:  record.Date.UTC().Format(time.DateOnly),
			Price: json.Number(record.Price.String()),
		})
	}
	return write(ctx, conn, serverMessage{Type: "history", Scope: scopeAsset, AssetID: assetID, History: history})
}

func write(ctx context.Context, conn *websocket.Conn, msg serverMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
