package httpinterface

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/tgmarket/escrowd/internal/core/application/escrow"
	"github.com/tgmarket/escrowd/internal/core/application/pubsub"
	"github.com/tgmarket/escrowd/internal/core/domain"
	"github.com/tgmarket/escrowd/internal/core/ports"
)

const maxBodySize = 1 << 20

type handler struct {
	escrowSvc  EscrowService
	statsSvc   StatsService
	webhookSvc WebhookService
}

func newHandler(
	escrowSvc EscrowService, statsSvc StatsService, webhookSvc WebhookService,
) *handler {
	return &handler{escrowSvc, statsSvc, webhookSvc}
}

func (h *handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	tx, err := h.escrowSvc.CreateTransaction(
		r.Context(), req.Buyer, req.Seller, req.Amount, req.Description,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createTransactionResponse{tx.ID})
}

func (h *handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, ok, err := h.escrowSvc.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(*tx))
}

func (h *handler) confirmTransaction(w http.ResponseWriter, r *http.Request) {
	var req confirmTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	status, err := h.escrowSvc.ConfirmTransaction(
		r.Context(), chi.URLParam(r, "id"), req.Actor, req.Role,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmTransactionResponse{status})
}

func (h *handler) completeTransaction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.escrowSvc.CompleteTransaction(
		r.Context(), chi.URLParam(r, "id"), req.Actor,
	)
	writeConfirmation(w, res, err)
}

func (h *handler) disputeTransaction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.escrowSvc.DisputeTransaction(
		r.Context(), chi.URLParam(r, "id"), req.Actor, req.Reason,
	)
	writeConfirmation(w, res, err)
}

func (h *handler) cancelTransaction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.escrowSvc.CancelTransaction(
		r.Context(), chi.URLParam(r, "id"), req.Actor, req.Reason,
	)
	writeConfirmation(w, res, err)
}

func (h *handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveDisputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.escrowSvc.ResolveDispute(
		r.Context(), chi.URLParam(r, "id"), req.Arbiter, req.Note,
	)
	writeConfirmation(w, res, err)
}

func (h *handler) reconcileTransaction(w http.ResponseWriter, r *http.Request) {
	res, err := h.escrowSvc.ReconcileTransaction(r.Context(), chi.URLParam(r, "id"))
	writeConfirmation(w, res, err)
}

func (h *handler) listPartyTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.escrowSvc.GetTransactionsForParty(
		r.Context(), chi.URLParam(r, "party"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	res := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		res = append(res, newTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) getStatistics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.statsSvc.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatisticsResponse(*snapshot))
}

func (h *handler) addWebhook(w http.ResponseWriter, r *http.Request) {
	var req addWebhookRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	event, ok := pubsub.WebhookEventFromString(strings.TrimSpace(req.Event))
	if !ok {
		writeError(w, pubsub.ErrInvalidWebhookEvent)
		return
	}

	secret := req.Secret
	if secret == "" && req.GenerateSecret {
		secret = h.webhookSvc.NewWebhookSecret()
	}

	id, err := h.webhookSvc.AddWebhook(r.Context(), pubsub.Webhook{
		Event:    event,
		Endpoint: req.Endpoint,
		Secret:   secret,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	res := addWebhookResponse{ID: id}
	if req.GenerateSecret && req.Secret == "" {
		res.Secret = secret
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	var event ports.WebhookEvent
	if str := r.URL.Query().Get("event"); str != "" {
		e, ok := pubsub.WebhookEventFromString(str)
		if !ok {
			writeError(w, pubsub.ErrInvalidWebhookEvent)
			return
		}
		event = e
	}

	webhooks, err := h.webhookSvc.ListWebhooks(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}

	res := make([]webhookResponse, 0, len(webhooks))
	for _, hook := range webhooks {
		res = append(res, webhookResponse{
			ID:        hook.GetId(),
			Event:     hook.GetEvent().String(),
			Endpoint:  hook.GetEndpoint(),
			IsSecured: hook.IsSecured(),
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) removeWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhookSvc.RemoveWebhook(
		r.Context(), chi.URLParam(r, "id"),
	); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody parses the JSON body into dst. An empty body leaves dst
// untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s", errMalformedBody, err)
	}
	return nil
}

func writeConfirmation(
	w http.ResponseWriter, res *escrow.Confirmation, err error,
) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse{res.Status, res.Message})
}

func writeError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	status := httpStatus(kind)
	if status == http.StatusInternalServerError {
		log.WithError(err).Warn("request failed")
	}
	writeJSON(w, status, errorResponse{errorBody{kind, err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("failed to write http response")
	}
}
