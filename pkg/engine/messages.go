package engine

import (
	"fmt"

	"github.com/smallyu/go-sm2/internal/protocol/exchange"
	"github.com/smallyu/go-sm2/pkg/sm2"
)

// Handshake message types.
const (
	MsgInit     = exchange.MsgInit
	MsgResponse = exchange.MsgResponse
	MsgConfirm  = exchange.MsgConfirm
)

// Wire payloads of the three handshake rounds, in the JSON shape used by the
// HTTP demo.
type (
	InitPayload     = exchange.InitPayload
	ResponsePayload = exchange.ResponsePayload
	ConfirmPayload  = exchange.ConfirmPayload
)

var roundTypes = map[uint32]string{
	1: MsgInit,
	2: MsgResponse,
	3: MsgConfirm,
}

// WireMessage wraps a JSON payload received from a peer as the handshake
// message of the given round.
func WireMessage(from string, round uint32, payload []byte) (sm2.Message, error) {
	msgType, ok := roundTypes[round]
	if !ok {
		return nil, fmt.Errorf("%w: no message for round %d", sm2.ErrInvalidMsg, round)
	}
	return &exchange.Message{
		FromID:     from,
		TypeString: msgType,
		RoundNum:   round,
		Data:       payload,
	}, nil
}

// KeyOf returns the negotiated key of a finished state machine, or nil while
// the handshake is still running.
func KeyOf(sm sm2.StateMachine) *sm2.ExchangeResult {
	if sm == nil {
		return nil
	}
	res, _ := sm.Result().(*sm2.ExchangeResult)
	return res
}
