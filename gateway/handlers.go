// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nutrichat/backend/gateway/assistant"
	"nutrichat/backend/gateway/normalize"
	"nutrichat/backend/gateway/quota"
	"nutrichat/backend/shared/logger"
)

// MaxMessageChars caps inbound message length before forwarding
const MaxMessageChars = 200

const (
	msgEmptyMessage    = "⚠️ Envie uma mensagem de texto para continuar."
	msgUpstreamFailure = "⚠️ Não consegui processar sua mensagem agora. Tente novamente em alguns instantes."
)

// Submitter runs one message through the assistant and waits for the reply
type Submitter interface {
	Submit(ctx context.Context, message string, prior []assistant.Message) (*assistant.Job, error)
}

// ProfileStore is the slice of the profile service the handlers need
type ProfileStore interface {
	PlanName(ctx context.Context, identity string) (string, error)
	Email(ctx context.Context, identity string) (string, error)
	ActivateSubscription(ctx context.Context, email, planName string) error
}

// Server wires the gateway's HTTP handlers to their collaborators
type Server struct {
	cfg        *Config
	log        *logger.Logger
	quota      *quota.Service
	assistant  Submitter
	normalizer *normalize.Normalizer
	profiles   ProfileStore // nil when no profile store is configured
}

// NewServer builds a Server. profiles may be nil; plan resolution then
// always yields the default tier and profile endpoints report unavailable.
func NewServer(cfg *Config, log *logger.Logger, svc *quota.Service, sub Submitter, norm *normalize.Normalizer, profiles ProfileStore) *Server {
	return &Server{
		cfg:        cfg,
		log:        log,
		quota:      svc,
		assistant:  sub,
		normalizer: norm,
		profiles:   profiles,
	}
}

// RegisterRoutes attaches all gateway routes to the router
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/chat", s.handleChat).Methods("POST")
	r.HandleFunc("/webhook", s.handleWebhook).Methods("POST")
	r.HandleFunc("/get_user_info", s.handleUserInfo).Methods("GET")
	r.HandleFunc("/reset_limits", s.handleResetLimits).Methods("POST")
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	Response   string  `json:"response"`
	TokensUsed int     `json:"tokens_used,omitempty"`
	Cost       float64 `json:"cost,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.ErrorWithCode("", requestID, "Failed to read request body", http.StatusBadRequest, err, nil)
		promChatRequestsTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: msgEmptyMessage})
		return
	}

	// Clients occasionally send mangled encodings; decode best-effort
	// instead of rejecting the whole message.
	var req chatRequest
	if err := json.Unmarshal([]byte(strings.ToValidUTF8(string(body), "")), &req); err != nil {
		s.log.ErrorWithCode("", requestID, "Failed to parse chat request", http.StatusBadRequest, err, nil)
		promChatRequestsTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: msgEmptyMessage})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		promChatRequestsTotal.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: msgEmptyMessage})
		return
	}
	message = truncateMessage(message, MaxMessageChars)

	identity := s.resolveIdentity(req.UserID, r)
	plan := s.resolvePlan(r.Context(), identity)
	now := time.Now().UTC()

	adm, err := s.quota.Admit(r.Context(), identity, plan, now)
	if err != nil {
		var qe *quota.QuotaError
		if errors.As(err, &qe) {
			s.log.Info(identity, requestID, "Chat request rejected by quota", map[string]interface{}{
				"reason": string(qe.Decision.Reason),
				"plan":   plan.Name,
			})
			promChatRequestsTotal.WithLabelValues("rejected").Inc()
			promQuotaRejections.WithLabelValues(string(qe.Decision.Reason)).Inc()
			writeJSON(w, http.StatusTooManyRequests, chatResponse{Response: qe.Decision.Message})
			return
		}
		s.log.ErrorWithCode(identity, requestID, "Quota check failed", http.StatusInternalServerError, err, nil)
		promChatRequestsTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, chatResponse{Response: fmt.Sprintf("⚠️ Erro interno: %v", err)})
		return
	}

	job, err := s.assistant.Submit(r.Context(), message, nil)
	if err != nil {
		adm.Release()
		s.log.ErrorWithCode(identity, requestID, "Assistant job failed", http.StatusInternalServerError, err, nil)
		promChatRequestsTotal.WithLabelValues("error").Inc()
		promAssistantCalls.WithLabelValues("failed").Inc()
		writeJSON(w, http.StatusInternalServerError, chatResponse{Response: msgUpstreamFailure})
		return
	}
	promAssistantCalls.WithLabelValues("completed").Inc()

	text := s.normalizer.Normalize(job.RawText)
	cost := quota.CalculateCostUSD(job.Model, job.PromptTokens, job.CompletionTokens)

	if err := adm.Commit(r.Context(), job.TotalTokens(), cost, time.Now().UTC()); err != nil {
		var qe *quota.QuotaError
		if errors.As(err, &qe) {
			// Usage is already recorded; the reply is withheld because the
			// spend crossed the daily cost ceiling.
			s.log.Info(identity, requestID, "Chat reply withheld by post-completion cost check", map[string]interface{}{
				"cost": cost,
				"plan": plan.Name,
			})
			promChatRequestsTotal.WithLabelValues("rejected").Inc()
			promQuotaRejections.WithLabelValues(string(qe.Decision.Reason)).Inc()
			writeJSON(w, http.StatusTooManyRequests, chatResponse{Response: qe.Decision.Message})
			return
		}
		s.log.ErrorWithCode(identity, requestID, "Failed to record usage", http.StatusInternalServerError, err, nil)
		promChatRequestsTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, chatResponse{Response: fmt.Sprintf("⚠️ Erro interno: %v", err)})
		return
	}

	durationMS := float64(time.Since(start).Milliseconds())
	s.log.InfoWithDuration(identity, requestID, "Chat request completed", durationMS, map[string]interface{}{
		"tokens": job.TotalTokens(),
		"cost":   cost,
		"model":  job.Model,
	})
	promChatRequestsTotal.WithLabelValues("success").Inc()
	promChatDuration.Observe(durationMS)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:   text,
		TokensUsed: job.TotalTokens(),
		Cost:       cost,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "NutriChat Gateway rodando",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"quota": "healthy",
	}
	if hc, ok := s.assistant.(interface{ IsHealthy() bool }); ok {
		if hc.IsHealthy() {
			components["assistant"] = "healthy"
		} else {
			components["assistant"] = "unhealthy"
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"service":    "nutrichat-gateway",
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	identity := r.Header.Get("X-User-ID")
	if identity == "" {
		identity = r.URL.Query().Get("user_id")
	}
	if identity == "" {
		writeJSON(w, http.StatusUnauthorized, chatResponse{Response: "identificação do usuário ausente"})
		return
	}
	if s.profiles == nil {
		writeJSON(w, http.StatusServiceUnavailable, chatResponse{Response: "perfil de usuário indisponível"})
		return
	}

	email, err := s.profiles.Email(r.Context(), identity)
	if err != nil {
		writeJSON(w, http.StatusNotFound, chatResponse{Response: "usuário não encontrado"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": identity,
		"email":   email,
	})
}

func (s *Server) handleResetLimits(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AdminJWTSecret == "" {
		writeJSON(w, http.StatusServiceUnavailable, chatResponse{Response: "admin endpoint disabled"})
		return
	}

	tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if tokenString == "" || tokenString == r.Header.Get("Authorization") {
		writeJSON(w, http.StatusUnauthorized, chatResponse{Response: "missing bearer token"})
		return
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.cfg.AdminJWTSecret), nil
	})
	if err != nil || !token.Valid {
		s.log.Warn("", "", "Rejected reset_limits with invalid token", map[string]interface{}{"error": fmt.Sprint(err)})
		writeJSON(w, http.StatusUnauthorized, chatResponse{Response: "invalid token"})
		return
	}

	if err := s.quota.Ledger().Reset(r.Context()); err != nil {
		s.log.ErrorWithCode("", "", "Failed to reset usage counters", http.StatusInternalServerError, err, nil)
		writeJSON(w, http.StatusInternalServerError, chatResponse{Response: fmt.Sprintf("⚠️ Erro interno: %v", err)})
		return
	}

	s.log.Info("", "", "Usage counters reset by admin", nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "limits reset"})
}

// resolveIdentity prefers the client-supplied user id and falls back to the
// remote address host when absent.
func (s *Server) resolveIdentity(userID string, r *http.Request) string {
	if userID = strings.TrimSpace(userID); userID != "" {
		return userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) resolvePlan(ctx context.Context, identity string) quota.Plan {
	if s.profiles == nil {
		return s.cfg.Plan("")
	}
	name, err := s.profiles.PlanName(ctx, identity)
	if err != nil {
		// Plan resolution is advisory; fall back to the default tier
		// rather than failing the chat request.
		s.log.Warn(identity, "", "Plan lookup failed, using default tier", map[string]interface{}{"error": err.Error()})
		return s.cfg.Plan("")
	}
	return s.cfg.Plan(name)
}

func truncateMessage(message string, max int) string {
	runes := []rune(message)
	if len(runes) <= max {
		return message
	}
	return string(runes[:max]) + "…"
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The status line is already written; nothing to do but note it
		log.Printf("error encoding response: %v", err)
	}
}
