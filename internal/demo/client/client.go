// Package client is the initiator side of the key-exchange demo.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/smallyu/go-sm2/internal/demo"
	"github.com/smallyu/go-sm2/internal/demo/channel"
	"github.com/smallyu/go-sm2/internal/demo/config"
	"github.com/smallyu/go-sm2/pkg/engine"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"go.uber.org/zap"
)

// ErrServer wraps error responses from the demo server.
var ErrServer = errors.New("server error")

type Client struct {
	baseURL string
	id      string
	keyLen  int

	privateKey string
	publicKey  string

	engine *engine.Engine
	http   *http.Client
	logger *zap.Logger
}

// Session is a confirmed exchange with the server.
type Session struct {
	ID       string
	ServerID string
	Key      []byte
}

// Destroy zeroes the negotiated key.
func (s *Session) Destroy() {
	for i := range s.Key {
		s.Key[i] = 0
	}
	s.Key = nil
}

// Report is the outcome of the bidirectional channel test.
type Report struct {
	ClientPlaintext    string
	ServerDecryptMatch bool
	ServerPlaintext    string
	ClientDecrypted    string
}

// Passed reports whether both directions decrypted correctly.
func (r *Report) Passed() bool {
	return r.ServerDecryptMatch && r.ClientDecrypted == r.ServerPlaintext
}

// New creates a client with the configured static key, or a fresh one.
// httpClient defaults to http.DefaultClient.
func New(cfg *config.Config, eng *engine.Engine, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	priv := cfg.ClientKey
	if priv == "" {
		kp, err := eng.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("failed to generate client key: %w", err)
		}
		priv = kp.PrivateKey
	}
	pub, err := eng.PublicKey(priv)
	if err != nil {
		return nil, fmt.Errorf("invalid client key: %w", err)
	}

	return &Client{
		baseURL:    cfg.ServerURL,
		id:         cfg.ClientID,
		keyLen:     cfg.KeyLength,
		privateKey: priv,
		publicKey:  pub,
		engine:     eng,
		http:       httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) PublicKey() string {
	return c.publicKey
}

// Exchange runs the three-step handshake against the server.
func (c *Client) Exchange(ctx context.Context) (*Session, error) {
	// 1. Announce the static and ephemeral keys
	sm, out, err := c.engine.NewInitiator(c.id, c.privateKey, c.keyLen)
	if err != nil {
		return nil, err
	}
	var initReq demo.InitRequest
	if err := json.Unmarshal(out[0].Payload(), &initReq); err != nil {
		destroy(sm)
		return nil, err
	}
	var initResp demo.InitResponse
	if err := c.post(ctx, demo.PathInit, &initReq, &initResp); err != nil {
		destroy(sm)
		return nil, fmt.Errorf("init: %w", err)
	}
	c.logger.Debug("key exchange answered", zap.String("session_id", initResp.SessionID), zap.String("server_id", initResp.IDb))

	// 2. Check S_B and derive the key
	payload, err := json.Marshal(&engine.ResponsePayload{
		ID:           initResp.IDb,
		StaticKey:    initResp.PB,
		EphemeralKey: initResp.RB,
		Confirmation: initResp.Sb,
	})
	if err != nil {
		destroy(sm)
		return nil, err
	}
	msg, err := engine.WireMessage(initResp.IDb, 2, payload)
	if err != nil {
		destroy(sm)
		return nil, err
	}
	next, out, err := sm.Update(msg)
	if err != nil {
		// Update destroys the state on abort
		return nil, err
	}
	result := engine.KeyOf(next)

	// 3. Send S_A
	var confirm engine.ConfirmPayload
	if err := json.Unmarshal(out[0].Payload(), &confirm); err != nil {
		result.Destroy()
		return nil, err
	}
	var confirmResp demo.ConfirmResponse
	err = c.post(ctx, demo.PathConfirm, &demo.ConfirmRequest{SessionID: initResp.SessionID, Sa: confirm.Confirmation}, &confirmResp)
	if err == nil && !confirmResp.Success {
		err = fmt.Errorf("%w: confirmation refused", ErrServer)
	}
	if err != nil {
		result.Destroy()
		return nil, fmt.Errorf("confirm: %w", err)
	}

	c.logger.Info("key exchange completed", zap.String("session_id", initResp.SessionID))
	return &Session{ID: initResp.SessionID, ServerID: initResp.IDb, Key: result.Key}, nil
}

// CryptoTest sends plaintext encrypted under the session key and decrypts
// the server's reply.
func (c *Client) CryptoTest(ctx context.Context, sess *Session, plaintext string) (*Report, error) {
	ch, err := channel.New(sess.Key)
	if err != nil {
		return nil, err
	}

	var resp demo.CryptoTestResponse
	err = c.post(ctx, demo.PathCrypto, &demo.CryptoTestRequest{
		SessionID:        sess.ID,
		ClientCiphertext: ch.Encrypt(plaintext),
		ClientPlaintext:  plaintext,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("crypto test: %w", err)
	}

	decrypted, err := ch.Decrypt(resp.ServerCiphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt server message: %w", err)
	}
	return &Report{
		ClientPlaintext:    plaintext,
		ServerDecryptMatch: resp.ClientDecryptMatch,
		ServerPlaintext:    resp.ServerPlaintext,
		ClientDecrypted:    decrypted,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e demo.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%w: %d: %s", ErrServer, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%w: %d", ErrServer, resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}

func destroy(sm sm2.StateMachine) {
	if d, ok := sm.(sm2.Destroyer); ok {
		d.Destroy()
	}
}
