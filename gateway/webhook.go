// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
const SignatureHeader = "X-Signature"

// EventCheckoutCompleted activates a subscription for the payer's email
const EventCheckoutCompleted = "checkout.completed"

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Email string `json:"email"`
		Plan  string `json:"plan"`
	} `json:"data"`
}

// handleWebhook receives payment provider callbacks. The body signature is
// verified against the shared webhook secret before any payload parsing;
// unknown event types are acknowledged so the provider stops retrying them.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebhookSecret == "" {
		writeJSON(w, http.StatusServiceUnavailable, chatResponse{Response: "webhook not configured"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: "invalid payload"})
		return
	}

	if !verifySignature(s.cfg.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
		s.log.Warn("", "", "Rejected webhook with invalid signature", nil)
		promWebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: "invalid signature"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Event == "" {
		promWebhookEvents.WithLabelValues("unknown", "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: "invalid payload"})
		return
	}

	switch payload.Event {
	case EventCheckoutCompleted:
		if payload.Data.Email == "" || payload.Data.Plan == "" {
			promWebhookEvents.WithLabelValues(payload.Event, "invalid").Inc()
			writeJSON(w, http.StatusBadRequest, chatResponse{Response: "invalid payload"})
			return
		}
		if s.profiles == nil {
			promWebhookEvents.WithLabelValues(payload.Event, "error").Inc()
			writeJSON(w, http.StatusServiceUnavailable, chatResponse{Response: "perfil de usuário indisponível"})
			return
		}
		if err := s.profiles.ActivateSubscription(r.Context(), payload.Data.Email, payload.Data.Plan); err != nil {
			s.log.ErrorWithCode("", "", "Failed to activate subscription", http.StatusInternalServerError, err, map[string]interface{}{
				"plan": payload.Data.Plan,
			})
			promWebhookEvents.WithLabelValues(payload.Event, "error").Inc()
			writeJSON(w, http.StatusInternalServerError, chatResponse{Response: "failed to process event"})
			return
		}
		s.log.Info("", "", "Subscription activated from webhook", map[string]interface{}{
			"plan": payload.Data.Plan,
		})
		promWebhookEvents.WithLabelValues(payload.Event, "processed").Inc()
	default:
		promWebhookEvents.WithLabelValues(payload.Event, "ignored").Inc()
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// verifySignature checks the hex HMAC-SHA256 of body against the header
// value using a constant-time compare.
func verifySignature(secret string, body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	return hmac.Equal(got, hmacSHA256([]byte(secret), body))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
