package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultRelayerTimeout = 10 * time.Second

var errRelayerURL = errors.New("bridge: relayer URL not configured")

// Relayer publishes notices to a guardian relayer over HTTP. The relayer
// assigns the guardian sequence number once the requested finality level is
// reached, so a successful response means the notice is durably queued.
type Relayer struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// RelayerOption customises Relayer construction.
type RelayerOption func(*Relayer)

// WithRelayerTimeout overrides the request timeout.
func WithRelayerTimeout(d time.Duration) RelayerOption {
	return func(r *Relayer) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

// WithRelayerAuthToken attaches a bearer token to every publish request.
func WithRelayerAuthToken(token string) RelayerOption {
	return func(r *Relayer) {
		r.authToken = strings.TrimSpace(token)
	}
}

// NewRelayer constructs a Relayer targeting the given base URL.
func NewRelayer(baseURL string, opts ...RelayerOption) (*Relayer, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errRelayerURL
	}
	relayer := &Relayer{
		baseURL: trimmed,
		client:  &http.Client{Timeout: defaultRelayerTimeout},
	}
	for _, opt := range opts {
		opt(relayer)
	}
	return relayer, nil
}

type relayerPublishRequest struct {
	Nonce    uint32 `json:"nonce"`
	Payload  string `json:"payload"`
	Finality string `json:"finality"`
}

type relayerPublishResponse struct {
	Sequence uint64 `json:"sequence"`
	Error    string `json:"error,omitempty"`
}

// Publish posts the message to the relayer and returns the assigned sequence.
func (r *Relayer) Publish(msg Message) (uint64, error) {
	if r == nil {
		return 0, errRelayerURL
	}
	body, err := json.Marshal(relayerPublishRequest{
		Nonce:    msg.Nonce,
		Payload:  string(msg.Payload),
		Finality: msg.Finality.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("bridge: encode publish request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, r.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("bridge: build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("bridge: publish notice: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("bridge: read publish response: %w", err)
	}
	var decoded relayerPublishResponse
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return 0, fmt.Errorf("bridge: decode publish response: %w", err)
		}
	}
	if resp.StatusCode != http.StatusOK {
		reason := strings.TrimSpace(decoded.Error)
		if reason == "" {
			reason = resp.Status
		}
		return 0, fmt.Errorf("bridge: relayer rejected notice: %s", reason)
	}
	return decoded.Sequence, nil
}
