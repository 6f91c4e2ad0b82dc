package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallyu/go-sm2/internal/demo"
	"github.com/smallyu/go-sm2/internal/demo/channel"
	"github.com/smallyu/go-sm2/internal/demo/config"
	"github.com/smallyu/go-sm2/pkg/engine"
	"github.com/smallyu/go-sm2/pkg/sm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	idA = "ALICE123@YAHOO.COM"
	idB = "BILL456@YAHOO.COM"
	dA  = "6FCBA2EF9AE0AB902BC3BDE3FF915D44BA4CC78F88E2F8E7F8996D3B8CCEEDEE"
	rA  = "83A2C9C8B96E5AF70BD480B472409A9A327257F1EBB73F5B073354B248668563"
	dB  = "5E35D7D3F3C54DBAC72E61819E730B019A84208CA3A35E4C2E353DFCCB2A3B53"
	rB  = "33FE21940342161C55619C4A0C060293D543C80AF19748CE176D83477DE71C80"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ServerID = idB
	cfg.ServerKey = dB
	return cfg
}

func fixedEngine(t *testing.T, draw string) *engine.Engine {
	t.Helper()
	b, err := hex.DecodeString(draw)
	require.NoError(t, err)
	e, err := engine.New(engine.WithRandom(bytes.NewReader(b)))
	require.NoError(t, err)
	return e
}

func newServer(t *testing.T, cfg *config.Config, eng *engine.Engine) (*Server, *httptest.Server) {
	t.Helper()
	if eng == nil {
		var err error
		eng, err = engine.New()
		require.NoError(t, err)
	}
	s, err := New(cfg, eng, zap.NewNop(), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, ts *httptest.Server, path string, in, out interface{}) int {
	t.Helper()
	body, err := json.Marshal(in)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// initiate starts an exchange as alice with a fresh ephemeral key.
func initiate(t *testing.T, eng *engine.Engine, keyLen int) (sm2.StateMachine, *demo.InitRequest) {
	t.Helper()
	sm, out, err := eng.NewInitiator(idA, dA, keyLen)
	require.NoError(t, err)
	var req demo.InitRequest
	require.NoError(t, json.Unmarshal(out[0].Payload(), &req))
	return sm, &req
}

func finish(t *testing.T, sm sm2.StateMachine, resp *demo.InitResponse) (sm2.StateMachine, string) {
	t.Helper()
	payload, err := json.Marshal(&engine.ResponsePayload{
		ID: resp.IDb, StaticKey: resp.PB, EphemeralKey: resp.RB, Confirmation: resp.Sb,
	})
	require.NoError(t, err)
	msg, err := engine.WireMessage(resp.IDb, 2, payload)
	require.NoError(t, err)
	next, out, err := sm.Update(msg)
	require.NoError(t, err)
	var confirm engine.ConfirmPayload
	require.NoError(t, json.Unmarshal(out[0].Payload(), &confirm))
	return next, confirm.Confirmation
}

func TestKeyExchangeVectors(t *testing.T) {
	s, ts := newServer(t, testConfig(), fixedEngine(t, rB))
	s.newSessionID = func() string { return "session-1" }
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }

	sm, req := initiate(t, fixedEngine(t, rA), 16)

	var initResp demo.InitResponse
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathInit, req, &initResp))
	assert.Equal(t, "session-1", initResp.SessionID)
	assert.Equal(t, idB, initResp.IDb)
	assert.Equal(t, s.PublicKey(), initResp.PB)
	assert.Equal(t, "b93374ade30a74e12ddb40e4c03d0c6fcf61badbf2c2c5cc39a91201d9228e2e", initResp.Sb)

	next, sa := finish(t, sm, &initResp)
	assert.Equal(t, "daefca6c32f53c48444d4ef35f98471e5d1cd1e3b5b8e3322dede310306689f6", sa)
	key := engine.KeyOf(next).Key
	assert.Equal(t, "f02f9068ad13e14f2b2602e0dfb2504f", hex.EncodeToString(key))

	var confirmResp demo.ConfirmResponse
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathConfirm, &demo.ConfirmRequest{SessionID: "session-1", Sa: sa}, &confirmResp))
	assert.True(t, confirmResp.Success)

	// A second confirmation is refused without dropping the key
	var errResp demo.ErrorResponse
	assert.Equal(t, http.StatusConflict, post(t, ts, demo.PathConfirm, &demo.ConfirmRequest{SessionID: "session-1", Sa: sa}, &errResp))
	assert.Equal(t, 1, s.sessions.Len())

	ch, err := channel.New(key)
	require.NoError(t, err)
	var cryptoResp demo.CryptoTestResponse
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathCrypto, &demo.CryptoTestRequest{
		SessionID:        "session-1",
		ClientCiphertext: ch.Encrypt("Hello from Go Client!"),
		ClientPlaintext:  "Hello from Go Client!",
	}, &cryptoResp))
	assert.True(t, cryptoResp.ClientDecryptMatch)
	assert.Equal(t, "Hello from Go Client!", cryptoResp.ClientDecrypted)
	assert.Equal(t, "Response from Go Server: 1700000000000", cryptoResp.ServerPlaintext)

	plain, err := ch.Decrypt(cryptoResp.ServerCiphertext)
	require.NoError(t, err)
	assert.Equal(t, cryptoResp.ServerPlaintext, plain)

	// The answered channel test consumes the session
	assert.Zero(t, s.sessions.Len())
	assert.Equal(t, http.StatusNotFound, post(t, ts, demo.PathCrypto, &demo.CryptoTestRequest{
		SessionID:        "session-1",
		ClientCiphertext: ch.Encrypt("again"),
		ClientPlaintext:  "again",
	}, &errResp))
}

func TestCryptoTestMismatch(t *testing.T) {
	_, ts := newServer(t, testConfig(), nil)
	sm, req := initiate(t, fixedEngine(t, rA), 16)

	var initResp demo.InitResponse
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathInit, req, &initResp))

	// The channel test needs a confirmed session
	var errResp demo.ErrorResponse
	assert.Equal(t, http.StatusConflict, post(t, ts, demo.PathCrypto, &demo.CryptoTestRequest{SessionID: initResp.SessionID}, &errResp))

	next, sa := finish(t, sm, &initResp)
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathConfirm, &demo.ConfirmRequest{SessionID: initResp.SessionID, Sa: sa}, nil))

	// Undecryptable input leaves the session in place
	assert.Equal(t, http.StatusBadRequest, post(t, ts, demo.PathCrypto, &demo.CryptoTestRequest{
		SessionID:        initResp.SessionID,
		ClientCiphertext: "abc",
	}, &errResp))

	ch, err := channel.New(engine.KeyOf(next).Key)
	require.NoError(t, err)
	var cryptoResp demo.CryptoTestResponse
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathCrypto, &demo.CryptoTestRequest{
		SessionID:        initResp.SessionID,
		ClientCiphertext: ch.Encrypt("one"),
		ClientPlaintext:  "two",
	}, &cryptoResp))
	assert.False(t, cryptoResp.ClientDecryptMatch)
}

// handshake runs init, confirm and the channel test with a fresh initiator
// and returns the status of the last step reached.
func handshake(t *testing.T, ts *httptest.Server, eng *engine.Engine, withCryptoTest bool) (string, int) {
	t.Helper()
	sm, req := initiate(t, eng, 16)

	var initResp demo.InitResponse
	if code := post(t, ts, demo.PathInit, req, &initResp); code != http.StatusOK {
		return "", code
	}
	next, sa := finish(t, sm, &initResp)
	if code := post(t, ts, demo.PathConfirm, &demo.ConfirmRequest{SessionID: initResp.SessionID, Sa: sa}, &demo.ConfirmResponse{}); code != http.StatusOK || !withCryptoTest {
		return initResp.SessionID, code
	}

	ch, err := channel.New(engine.KeyOf(next).Key)
	require.NoError(t, err)
	var cryptoResp demo.CryptoTestResponse
	code := post(t, ts, demo.PathCrypto, &demo.CryptoTestRequest{
		SessionID:        initResp.SessionID,
		ClientCiphertext: ch.Encrypt("ping"),
		ClientPlaintext:  "ping",
	}, &cryptoResp)
	assert.True(t, cryptoResp.ClientDecryptMatch)
	return initResp.SessionID, code
}

func TestSessionsAreReleased(t *testing.T) {
	eng, err := engine.New()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.SessionLimit = 2
	cfg.SessionTTL = time.Minute
	s, ts := newServer(t, cfg, eng)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	// Completed handshakes do not hold a slot
	for i := 0; i < 5; i++ {
		_, code := handshake(t, ts, eng, true)
		require.Equal(t, http.StatusOK, code, "handshake %d", i)
		assert.Zero(t, s.sessions.Len())
	}

	// An abandoned init and a confirmed session whose channel test never came
	_, req := initiate(t, eng, 16)
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathInit, req, nil))
	confirmed, code := handshake(t, ts, eng, false)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, s.sessions.Len())

	_, req = initiate(t, eng, 16)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, ts, demo.PathInit, req, nil))

	// Both expire
	now = now.Add(time.Minute)
	_, req = initiate(t, eng, 16)
	assert.Equal(t, http.StatusOK, post(t, ts, demo.PathInit, req, nil))
	assert.Equal(t, 1, s.sessions.Len())

	var errResp demo.ErrorResponse
	assert.Equal(t, http.StatusNotFound, post(t, ts, demo.PathCrypto, &demo.CryptoTestRequest{SessionID: confirmed}, &errResp))
}

func TestConcurrentReplayIsRefused(t *testing.T) {
	s, ts := newServer(t, testConfig(), nil)
	_, req := initiate(t, fixedEngine(t, rA), 16)
	body, err := json.Marshal(req)
	require.NoError(t, err)

	const n = 8
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(ts.URL+demo.PathInit, "application/json", bytes.NewReader(body))
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	count := map[int]int{}
	for code := range codes {
		count[code]++
	}
	assert.Equal(t, 1, count[http.StatusOK])
	assert.Equal(t, n-1, count[http.StatusConflict])
	assert.Equal(t, 1, s.sessions.Len())
}

func TestConfirmationMismatchDropsSession(t *testing.T) {
	s, ts := newServer(t, testConfig(), nil)
	_, req := initiate(t, fixedEngine(t, rA), 16)

	var initResp demo.InitResponse
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathInit, req, &initResp))
	require.Equal(t, 1, s.sessions.Len())

	var errResp demo.ErrorResponse
	assert.Equal(t, http.StatusForbidden, post(t, ts, demo.PathConfirm,
		&demo.ConfirmRequest{SessionID: initResp.SessionID, Sa: strings.Repeat("00", 32)}, &errResp))
	assert.Contains(t, errResp.Error, "key confirmation mismatch")
	assert.Zero(t, s.sessions.Len())

	assert.Equal(t, http.StatusNotFound, post(t, ts, demo.PathConfirm,
		&demo.ConfirmRequest{SessionID: initResp.SessionID, Sa: strings.Repeat("00", 32)}, &errResp))
}

func TestInitRejections(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	eng, err := engine.New()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.SessionLimit = 2
	s, err := New(cfg, eng, zap.New(core), nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	var errResp demo.ErrorResponse

	// Replayed ephemeral key
	_, req := initiate(t, fixedEngine(t, rA), 16)
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathInit, req, nil))
	assert.Equal(t, http.StatusConflict, post(t, ts, demo.PathInit, req, &errResp))
	assert.Contains(t, errResp.Error, "ephemeral key already used")

	// Off-curve ephemeral key
	_, req = initiate(t, eng, 16)
	req.RA = req.RA[:128] + "00"
	assert.Equal(t, http.StatusBadRequest, post(t, ts, demo.PathInit, req, &errResp))
	assert.Contains(t, errResp.Error, "ephemeral point not on curve")

	// Bad key length
	_, req = initiate(t, eng, 16)
	req.KeyLen = 0
	assert.Equal(t, http.StatusBadRequest, post(t, ts, demo.PathInit, req, &errResp))

	// Session limit
	_, req = initiate(t, eng, 16)
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathInit, req, nil))
	_, req = initiate(t, eng, 16)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, ts, demo.PathInit, req, &errResp))

	// Malformed body
	resp, err := http.Post(ts.URL+demo.PathInit, "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.GreaterOrEqual(t, logs.FilterMessage("key exchange request failed").Len(), 5)
}

func TestRouting(t *testing.T) {
	_, ts := newServer(t, testConfig(), nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+demo.PathInit, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))

	resp, err = http.Get(ts.URL + demo.PathConfirm)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/unknown", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errResp demo.ErrorResponse
	assert.Equal(t, http.StatusNotFound, post(t, ts, demo.PathConfirm, &demo.ConfirmRequest{SessionID: "missing"}, &errResp))
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newServer(t, testConfig(), nil)
	_, req := initiate(t, fixedEngine(t, rA), 16)
	require.Equal(t, http.StatusOK, post(t, ts, demo.PathInit, req, nil))
	require.Equal(t, http.StatusConflict, post(t, ts, demo.PathInit, req, nil))

	resp, err := http.Get(ts.URL + demo.PathMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `sm2demo_keyswap_steps_total{result="ok",stage="init"} 1`)
	assert.Contains(t, string(body), `sm2demo_keyswap_steps_total{result="rejected",stage="init"} 1`)
	assert.Contains(t, string(body), "sm2demo_keyswap_replays_total 1")
	assert.Contains(t, string(body), "sm2demo_sessions 1")
}

func TestNewRejectsBadKey(t *testing.T) {
	eng, err := engine.New()
	require.NoError(t, err)
	cfg := testConfig()
	cfg.ServerKey = "00"
	_, err = New(cfg, eng, nil, nil)
	assert.ErrorIs(t, err, sm2.ErrInvalidPrivateKey)

	cfg.ServerKey = ""
	s, err := New(cfg, eng, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, eng.ValidatePublicKey(s.PublicKey()))
}
