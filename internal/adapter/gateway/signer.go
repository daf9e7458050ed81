package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Signer builds the order source's compact signed bearer token:
// b64url(header) "." b64url(payload) "." b64url(HMAC-SHA256(secret, head.payload)),
// all segments unpadded. The header carries the API key, a Unix-second nonce
// and the algorithm tag.
type Signer struct {
	apiKey    string
	apiSecret string
	now       func() time.Time
}

func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{apiKey: apiKey, apiSecret: apiSecret, now: time.Now}
}

// Token signs the request payload. Deterministic for a fixed payload and
// clock second.
func (s *Signer) Token(payload any) (string, error) {
	return s.token(payload, strconv.FormatInt(s.now().Unix(), 10))
}

func (s *Signer) token(payload any, nonce string) (string, error) {
	headerJSON, err := json.Marshal(map[string]string{
		"X-Api-Key": s.apiKey,
		"Nonce":     nonce,
		"alg":       "HS256",
	})
	if err != nil {
		return "", fmt.Errorf("marshal token header: %w", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}

	unsigned := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(payloadJSON)

	mac := hmac.New(sha256.New, []byte(s.apiSecret))
	mac.Write([]byte(unsigned))

	return unsigned + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Headers returns the authenticated header set for one request. The Nonce
// header carries the same nonce the token was signed with.
func (s *Signer) Headers(payload any) (http.Header, error) {
	nonce := strconv.FormatInt(s.now().Unix(), 10)
	token, err := s.token(payload, nonce)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set("X-Api-Key", s.apiKey)
	h.Set("Authorization", "Bearer "+token)
	h.Set("Content-Type", "application/json")
	h.Set("Nonce", nonce)
	return h, nil
}
