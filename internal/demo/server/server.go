// Package server is the responder side of the key-exchange demo. It answers
// init and confirm requests over JSON and then proves the negotiated key with
// an SM4 round trip.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/decred/dcrd/lru"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/smallyu/go-sm2/internal/demo"
	"github.com/smallyu/go-sm2/internal/demo/channel"
	"github.com/smallyu/go-sm2/internal/demo/config"
	"github.com/smallyu/go-sm2/internal/demo/metrics"
	"github.com/smallyu/go-sm2/internal/logging"
	"github.com/smallyu/go-sm2/internal/session"
	"github.com/smallyu/go-sm2/pkg/engine"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

var (
	errReplayedEphemeral = errors.New("ephemeral key already used")
	errNotConfirmed      = errors.New("key exchange not confirmed")
	errBadRequest        = errors.New("bad request")
)

type Server struct {
	cfg     *config.Config
	engine  *engine.Engine
	logger  *zap.Logger
	metrics *metrics.Metrics

	privateKey string
	publicKey  string

	sessions *session.Store
	// Serializes state transitions; a state machine is not safe for concurrent use
	transition sync.Mutex

	// Initiator ephemeral keys seen recently; a reused one is refused
	replayMu sync.Mutex
	seen     lru.Cache

	newSessionID func() string
	now          func() time.Time
}

// New creates a server with the configured static key, or a fresh one.
func New(cfg *config.Config, eng *engine.Engine, logger *zap.Logger, m *metrics.Metrics) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}

	priv := cfg.ServerKey
	if priv == "" {
		kp, err := eng.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("failed to generate server key: %w", err)
		}
		priv = kp.PrivateKey
	}
	pub, err := eng.PublicKey(priv)
	if err != nil {
		return nil, fmt.Errorf("invalid server key: %w", err)
	}

	s := &Server{
		cfg:          cfg,
		engine:       eng,
		logger:       logger,
		metrics:      m,
		privateKey:   priv,
		publicKey:    pub,
		seen:         lru.NewCache(uint(cfg.ReplayCache)),
		newSessionID: uuid.NewString,
		now:          time.Now,
	}
	s.sessions = session.NewStore(cfg.SessionLimit,
		session.WithTTL(cfg.SessionTTL),
		session.WithClock(func() time.Time { return s.now() }))
	return s, nil
}

// PublicKey returns the server's static public key in hex.
func (s *Server) PublicKey() string {
	return s.publicKey
}

// Handler routes the demo API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withLogger, withCORS)

	r.HandleFunc(demo.PathInit, s.handleInit).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc(demo.PathConfirm, s.handleConfirm).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc(demo.PathCrypto, s.handleCryptoTest).Methods(http.MethodPost, http.MethodOptions)
	r.Handle(demo.PathMetrics, s.metrics.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, &demo.ErrorResponse{Error: "Not found"})
	}))
	r.MethodNotAllowedHandler = withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, &demo.ErrorResponse{Error: "Method not allowed"})
	}))
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down and drops
// every session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo server listening",
			zap.String("addr", s.cfg.Listen),
			zap.String("server_id", s.cfg.ServerID),
			zap.String("public_key", s.publicKey))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sessions.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.sessions.Close()
		return err
	}
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	body, req, err := readBody[demo.InitRequest](r)
	if err != nil {
		s.fail(w, r, "init", err)
		return
	}
	if !s.markEphemeral(req.RA) {
		s.metrics.Replays.Inc()
		s.fail(w, r, "init", fmt.Errorf("%w: %s", errReplayedEphemeral, req.RA))
		return
	}

	responder, err := s.engine.NewResponder(s.cfg.ServerID, s.privateKey)
	if err != nil {
		s.fail(w, r, "init", err)
		return
	}
	msg, err := engine.WireMessage(req.IDa, 1, body)
	if err != nil {
		s.fail(w, r, "init", err)
		return
	}
	next, out, err := responder.Update(msg)
	if err != nil {
		s.fail(w, r, "init", err)
		return
	}

	var reply engine.ResponsePayload
	if err := json.Unmarshal(out[0].Payload(), &reply); err != nil {
		destroy(next)
		s.fail(w, r, "init", err)
		return
	}

	id := s.newSessionID()
	if err := s.sessions.Put(id, next); err != nil {
		destroy(next)
		s.fail(w, r, "init", err)
		return
	}
	s.metrics.Sessions.Set(float64(s.sessions.Len()))
	s.metrics.Handshakes.WithLabelValues("init", metrics.ResultOK).Inc()

	logger.Info("key exchange answered", zap.String("session_id", id), zap.String("peer", req.IDa), zap.Int("key_len", req.KeyLen))
	writeJSON(w, http.StatusOK, &demo.InitResponse{
		SessionID: id,
		IDb:       reply.ID,
		PB:        reply.StaticKey,
		RB:        reply.EphemeralKey,
		Sb:        reply.Confirmation,
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	_, req, err := readBody[demo.ConfirmRequest](r)
	if err != nil {
		s.fail(w, r, "confirm", err)
		return
	}
	ctx, logger := logging.WithAttrs(r.Context(), zap.String("session_id", req.SessionID))
	r = r.WithContext(ctx)

	s.transition.Lock()
	defer s.transition.Unlock()

	sm, err := s.sessions.Get(req.SessionID)
	if err != nil {
		s.fail(w, r, "confirm", err)
		return
	}
	payload, err := json.Marshal(&engine.ConfirmPayload{Confirmation: req.Sa})
	if err != nil {
		s.fail(w, r, "confirm", err)
		return
	}
	msg, err := engine.WireMessage(req.SessionID, 3, payload)
	if err != nil {
		s.fail(w, r, "confirm", err)
		return
	}

	next, _, err := sm.Update(msg)
	if err != nil {
		if !errors.Is(err, sm2.ErrProtocolDone) {
			// The failed transition destroyed the state
			s.sessions.Remove(req.SessionID)
			s.metrics.Sessions.Set(float64(s.sessions.Len()))
		}
		s.fail(w, r, "confirm", err)
		return
	}
	if err := s.sessions.Replace(req.SessionID, next); err != nil {
		destroy(next)
		s.fail(w, r, "confirm", err)
		return
	}
	s.metrics.Handshakes.WithLabelValues("confirm", metrics.ResultOK).Inc()

	logger.Info("key exchange confirmed")
	writeJSON(w, http.StatusOK, &demo.ConfirmResponse{Success: true})
}

func (s *Server) handleCryptoTest(w http.ResponseWriter, r *http.Request) {
	_, req, err := readBody[demo.CryptoTestRequest](r)
	if err != nil {
		s.failCrypto(w, r, err)
		return
	}
	ctx, logger := logging.WithAttrs(r.Context(), zap.String("session_id", req.SessionID))
	r = r.WithContext(ctx)

	s.transition.Lock()
	defer s.transition.Unlock()

	sm, err := s.sessions.Get(req.SessionID)
	if err != nil {
		s.failCrypto(w, r, err)
		return
	}
	result := engine.KeyOf(sm)
	if result == nil {
		s.failCrypto(w, r, errNotConfirmed)
		return
	}
	ch, err := channel.New(result.Key)
	if err != nil {
		s.failCrypto(w, r, err)
		return
	}

	// 1. Open the client's message
	decrypted, err := ch.Decrypt(req.ClientCiphertext)
	if err != nil {
		s.failCrypto(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	match := decrypted == req.ClientPlaintext

	// 2. Answer under the same key
	plaintext := "Response from Go Server: " + strconv.FormatInt(s.now().UnixMilli(), 10)
	resp := &demo.CryptoTestResponse{
		ClientDecrypted:    decrypted,
		ClientDecryptMatch: match,
		ServerPlaintext:    plaintext,
		ServerCiphertext:   ch.Encrypt(plaintext),
	}

	res := metrics.ResultOK
	if !match {
		res = metrics.ResultRejected
	}
	s.metrics.CryptoTests.WithLabelValues(res).Inc()

	// The answered channel test consumes the session
	s.sessions.Remove(req.SessionID)
	s.metrics.Sessions.Set(float64(s.sessions.Len()))

	logger.Info("channel test", zap.Bool("match", match))
	writeJSON(w, http.StatusOK, resp)
}

// markEphemeral records an initiator ephemeral key and reports whether it
// was new.
func (s *Server) markEphemeral(ra string) bool {
	if s.cfg.ReplayCache <= 0 {
		return true
	}
	s.replayMu.Lock()
	defer s.replayMu.Unlock()
	if s.seen.Contains(ra) {
		return false
	}
	s.seen.Add(ra)
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, stage string, err error) {
	code := statusOf(err)
	result := metrics.ResultError
	if code < http.StatusInternalServerError {
		result = metrics.ResultRejected
	}
	s.metrics.Handshakes.WithLabelValues(stage, result).Inc()
	logging.FromContext(r.Context()).Warn("key exchange request failed",
		zap.String("stage", stage),
		zap.Int("status", code),
		zap.Error(err))
	writeJSON(w, code, &demo.ErrorResponse{Error: err.Error()})
}

func (s *Server) failCrypto(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	s.metrics.CryptoTests.WithLabelValues(metrics.ResultError).Inc()
	logging.FromContext(r.Context()).Warn("channel test failed", zap.Int("status", code), zap.Error(err))
	writeJSON(w, code, &demo.ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	var negotiation *sm2.NegotiationError
	switch {
	case errors.Is(err, sm2.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, errReplayedEphemeral),
		errors.Is(err, errNotConfirmed),
		errors.Is(err, sm2.ErrProtocolDone),
		errors.Is(err, sm2.ErrExchangeAborted):
		return http.StatusConflict
	case errors.Is(err, sm2.ErrConfirmationMismatch):
		return http.StatusForbidden
	case errors.Is(err, session.ErrStoreFull):
		return http.StatusServiceUnavailable
	case errors.As(err, &negotiation),
		errors.Is(err, sm2.ErrInvalidMsg),
		errors.Is(err, sm2.ErrInvalidKeyLength),
		errors.Is(err, sm2.ErrUserIDTooLong),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func readBody[T any](r *http.Request) ([]byte, *T, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	v := new(T)
	if err := json.Unmarshal(body, v); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return body, v, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func destroy(sm sm2.StateMachine) {
	if d, ok := sm.(sm2.Destroyer); ok {
		d.Destroy()
	}
}
