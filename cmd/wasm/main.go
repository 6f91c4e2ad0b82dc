//go:build js && wasm

package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/smallyu/go-sm2/pkg/engine"
	"github.com/smallyu/go-sm2/pkg/sm2"
)

var (
	eng *engine.Engine

	// Active key exchanges, keyed by the handle returned to JS
	mu       sync.Mutex
	sessions = make(map[string]sm2.StateMachine)
)

func main() {
	var err error
	eng, err = engine.New()
	if err != nil {
		panic(err)
	}

	fmt.Println("Go SM2 WASM Initialized")

	js.Global().Set("GoSM2", map[string]interface{}{
		"GenerateKeyPair": js.FuncOf(GenerateKeyPair),
		"PublicKey":       js.FuncOf(PublicKey),
		"Encrypt":         js.FuncOf(Encrypt),
		"Decrypt":         js.FuncOf(Decrypt),
		"Sign":            js.FuncOf(Sign),
		"Verify":          js.FuncOf(Verify),
		"NewInitiator":    js.FuncOf(NewInitiator),
		"NewResponder":    js.FuncOf(NewResponder),
		"Update":          js.FuncOf(Update),
		"Result":          js.FuncOf(Result),
		"Close":           js.FuncOf(Close),
	})

	select {}
}

// messageDTO is the JS form of a handshake message. Data is the JSON payload.
type messageDTO struct {
	From  string `json:"from"`
	Type  string `json:"type"`
	Round uint32 `json:"round"`
	Data  string `json:"data"`
}

func errorf(format string, args ...interface{}) string {
	return "error: " + fmt.Sprintf(format, args...)
}

func expectArgs(args []js.Value, n int, names string) (string, bool) {
	if len(args) != n {
		return errorf("expected %d arguments (%s)", n, names), false
	}
	return "", true
}

// GenerateKeyPair returns {"privateKey": ..., "publicKey": ...}.
func GenerateKeyPair(this js.Value, args []js.Value) interface{} {
	kp, err := eng.GenerateKeyPair()
	if err != nil {
		return errorf("keygen failed: %v", err)
	}
	b, _ := json.Marshal(kp)
	return string(b)
}

// PublicKey derives the public key of a private key.
// Arguments: privateKey
func PublicKey(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 1, "privateKey"); !ok {
		return msg
	}
	pub, err := eng.PublicKey(args[0].String())
	if err != nil {
		return errorf("%v", err)
	}
	return pub
}

// Encrypt returns the hex ciphertext of a text message.
// Arguments: message, publicKey
func Encrypt(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 2, "message, publicKey"); !ok {
		return msg
	}
	ct, err := eng.Encrypt([]byte(args[0].String()), args[1].String())
	if err != nil {
		return errorf("encrypt failed: %v", err)
	}
	return ct
}

// Decrypt returns the text message.
// Arguments: ciphertext, privateKey
func Decrypt(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 2, "ciphertext, privateKey"); !ok {
		return msg
	}
	text, err := eng.Decrypt(args[0].String(), args[1].String())
	if err != nil {
		return errorf("decrypt failed: %v", err)
	}
	return text
}

// Sign returns the "r h s" signature.
// Arguments: userID, message, privateKey
func Sign(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 3, "userID, message, privateKey"); !ok {
		return msg
	}
	sig, err := eng.Sign(args[0].String(), []byte(args[1].String()), args[2].String())
	if err != nil {
		return errorf("sign failed: %v", err)
	}
	return sig
}

// Verify returns a boolean.
// Arguments: userID, signature, message, publicKey
func Verify(this js.Value, args []js.Value) interface{} {
	if len(args) != 4 {
		return false
	}
	return eng.Verify(args[0].String(), args[1].String(), []byte(args[2].String()), args[3].String())
}

// NewInitiator starts a key exchange as party A.
// Arguments: sessionID, userID, privateKey, keyLen
// Returns: JSON {"sessionID": ..., "messages": [...]}
func NewInitiator(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 4, "sessionID, userID, privateKey, keyLen"); !ok {
		return msg
	}
	sm, out, err := eng.NewInitiator(args[1].String(), args[2].String(), args[3].Int())
	if err != nil {
		return errorf("failed to create initiator: %v", err)
	}
	return register(args[0].String()+"-initiator", sm, out)
}

// NewResponder prepares party B.
// Arguments: sessionID, userID, privateKey
// Returns: JSON {"sessionID": ..., "messages": []}
func NewResponder(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 3, "sessionID, userID, privateKey"); !ok {
		return msg
	}
	sm, err := eng.NewResponder(args[1].String(), args[2].String())
	if err != nil {
		return errorf("failed to create responder: %v", err)
	}
	return register(args[0].String()+"-responder", sm, nil)
}

func register(handle string, sm sm2.StateMachine, out []sm2.Message) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := sessions[handle]; ok {
		destroy(sm)
		return errorf("%v: %s", sm2.ErrSessionExists, handle)
	}
	sessions[handle] = sm

	resp := map[string]interface{}{
		"sessionID": handle,
		"messages":  encodeMessages(out),
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

// Update applies a message from the peer.
// Arguments: sessionID, JSON message
// Returns: JSON array of messages for the peer
func Update(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 2, "sessionID, jsonMsg"); !ok {
		return msg
	}
	handle := args[0].String()

	var dto messageDTO
	if err := json.Unmarshal([]byte(args[1].String()), &dto); err != nil {
		return errorf("invalid message json: %v", err)
	}
	msg, err := engine.WireMessage(dto.From, dto.Round, []byte(dto.Data))
	if err != nil {
		return errorf("%v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	sm, ok := sessions[handle]
	if !ok {
		return errorf("%v: %s", sm2.ErrSessionNotFound, handle)
	}
	next, out, err := sm.Update(msg)
	if err != nil {
		if !errors.Is(err, sm2.ErrProtocolDone) {
			// Aborted handshakes are already zeroed
			delete(sessions, handle)
		}
		return errorf("update failed: %v", err)
	}
	sessions[handle] = next

	b, _ := json.Marshal(encodeMessages(out))
	return string(b)
}

// Result returns {"role", "peerID", "key"} once the exchange finished, null
// before.
// Arguments: sessionID
func Result(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 1, "sessionID"); !ok {
		return msg
	}
	mu.Lock()
	defer mu.Unlock()
	sm, ok := sessions[args[0].String()]
	if !ok {
		return errorf("%v", sm2.ErrSessionNotFound)
	}
	res := engine.KeyOf(sm)
	if res == nil {
		return nil
	}
	b, _ := json.Marshal(map[string]string{
		"role":   res.Role.String(),
		"peerID": res.PeerID,
		"key":    hex.EncodeToString(res.Key),
	})
	return string(b)
}

// Close drops a session and zeroes its secrets.
// Arguments: sessionID
func Close(this js.Value, args []js.Value) interface{} {
	if msg, ok := expectArgs(args, 1, "sessionID"); !ok {
		return msg
	}
	mu.Lock()
	defer mu.Unlock()
	handle := args[0].String()
	if sm, ok := sessions[handle]; ok {
		destroy(sm)
		delete(sessions, handle)
	}
	return nil
}

func encodeMessages(msgs []sm2.Message) []messageDTO {
	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageDTO{
			From:  m.From(),
			Type:  m.Type(),
			Round: m.RoundNumber(),
			Data:  string(m.Payload()),
		})
	}
	return out
}

func destroy(sm sm2.StateMachine) {
	if d, ok := sm.(sm2.Destroyer); ok {
		d.Destroy()
	}
}
