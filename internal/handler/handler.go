// Package handler contains chi HTTP handlers that translate webhook
// requests into bot updates.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport/telegram"
)

// SecretHeader carries the token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Dispatcher processes one normalised update. service.BotService
// satisfies it.
type Dispatcher interface {
	Handle(ctx context.Context, u transport.Update) error
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WebhookHandler receives updates from the chat platform. Updates are
// acknowledged at once and processed by a bounded pool of workers running
// on ctx, so long admin fan-outs outlive the HTTP request.
type WebhookHandler struct {
	ctx    context.Context
	svc    Dispatcher
	secret string
	log    *zap.Logger
	jobs   errgroup.Group
}

// NewWebhookHandler constructs a WebhookHandler. An empty secret disables
// the header check. At most workers updates are processed at once; further
// requests wait for a free worker.
func NewWebhookHandler(ctx context.Context, svc Dispatcher, secret string, workers int, log *zap.Logger) *WebhookHandler {
	h := &WebhookHandler{ctx: ctx, svc: svc, secret: secret, log: log}
	h.jobs.SetLimit(max(workers, 1))
	return h
}

// Wait blocks until every accepted update has been processed.
func (h *WebhookHandler) Wait() {
	_ = h.jobs.Wait()
}

func (h *WebhookHandler) dispatch(updateID int64, u transport.Update) {
	h.jobs.Go(func() error {
		if err := h.svc.Handle(h.ctx, u); err != nil {
			h.log.Error("update failed",
				zap.Int64("update_id", updateID),
				zap.Int64("user_id", u.UserID),
				zap.Error(err),
			)
		}
		return nil
	})
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeJSON accepts unknown fields; the platform adds new ones freely.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	return json.NewDecoder(r.Body).Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Webhook handles POST /telegram/webhook
// The update is answered with 200 before it is processed; processing
// failures are only logged, otherwise the platform redelivers the same
// update indefinitely.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" &&
		subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid secret token")
		return
	}

	var upd telegram.Update
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	u, ok := upd.Normalize()
	if !ok {
		h.log.Debug("update ignored", zap.Int64("update_id", upd.UpdateID))
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	h.dispatch(upd.UpdateID, u)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
