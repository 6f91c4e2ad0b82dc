// Package demo holds the JSON bodies of the key-exchange demo API, shared by
// the server and the client.
package demo

// Routes served by the demo.
const (
	PathInit    = "/api/keyswap/init"
	PathConfirm = "/api/keyswap/confirm"
	PathCrypto  = "/api/crypto/test"
	PathMetrics = "/metrics"
)

// InitRequest opens a key exchange. Points are uncompressed hex.
type InitRequest struct {
	IDa    string `json:"IDa"`
	PA     string `json:"pA"`
	RA     string `json:"Ra"`
	KeyLen int    `json:"keyLen"`
}

type InitResponse struct {
	SessionID string `json:"sessionId"`
	IDb       string `json:"IDb"`
	PB        string `json:"pB"`
	RB        string `json:"Rb"`
	Sb        string `json:"Sb"`
}

type ConfirmRequest struct {
	SessionID string `json:"sessionId"`
	Sa        string `json:"Sa"`
}

type ConfirmResponse struct {
	Success bool `json:"success"`
}

// CryptoTestRequest carries a message the client encrypted under the
// negotiated key, along with its plaintext for comparison.
type CryptoTestRequest struct {
	SessionID        string `json:"sessionId"`
	ClientCiphertext string `json:"clientCiphertext"`
	ClientPlaintext  string `json:"clientPlaintext"`
}

type CryptoTestResponse struct {
	ClientDecrypted    string `json:"clientDecrypted"`
	ClientDecryptMatch bool   `json:"clientDecryptMatch"`
	ServerPlaintext    string `json:"serverPlaintext"`
	ServerCiphertext   string `json:"serverCiphertext"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
