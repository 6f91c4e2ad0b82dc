package exchange

// Message types, one per round.
const (
	MsgInit     = "KeyExchangeInit"     // round 1, initiator -> responder
	MsgResponse = "KeyExchangeResponse" // round 2, responder -> initiator
	MsgConfirm  = "KeyExchangeConfirm"  // round 3, initiator -> responder
)

// InitPayload opens the exchange. Keys are hex encoded points.
type InitPayload struct {
	ID           string `json:"IDa"`
	StaticKey    string `json:"pA"`
	EphemeralKey string `json:"Ra"`
	KeyLength    int    `json:"keyLen"`
}

// ResponsePayload carries the responder's keys and S_B.
type ResponsePayload struct {
	ID           string `json:"IDb"`
	StaticKey    string `json:"pB"`
	EphemeralKey string `json:"Rb"`
	Confirmation string `json:"Sb"`
}

// ConfirmPayload carries S_A.
type ConfirmPayload struct {
	Confirmation string `json:"Sa"`
}

// Message is the concrete sm2.Message used by the exchange state machines.
type Message struct {
	FromID     string
	TypeString string
	RoundNum   uint32
	Data       []byte
}

func (m *Message) Type() string {
	return m.TypeString
}

func (m *Message) From() string {
	return m.FromID
}

func (m *Message) Payload() []byte {
	return m.Data
}

func (m *Message) RoundNumber() uint32 {
	return m.RoundNum
}
