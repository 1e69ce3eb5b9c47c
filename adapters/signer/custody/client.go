package custody

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/openfleet/fleetd/core"
)

// Client is the HTTP implementation of SessionAPI. Each session gets an
// ephemeral P-256 key pair; the custody service wraps the session
// credential to the public half, and subsequent signing requests are
// stamped with the private half.
type Client struct {
	baseURL string
	http    *http.Client

	orgID      string
	subOrgID   string
	sessionTTL time.Duration
}

// ClientConfig configures a custody Client.
type ClientConfig struct {
	BaseURL           string
	OrganizationID    string
	SubOrganizationID string
	HTTPClient        *http.Client
	SessionTTL        time.Duration
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.OrganizationID == "" || cfg.SubOrganizationID == "" {
		return nil, core.ErrSignerNotConfigured
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = core.DefaultSessionTTL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		http:       httpClient,
		orgID:      cfg.OrganizationID,
		subOrgID:   cfg.SubOrganizationID,
		sessionTTL: ttl,
	}, nil
}

type createSessionRequest struct {
	OrganizationID    string `json:"organizationId"`
	SubOrganizationID string `json:"subOrganizationId"`
	TargetPublicKey   string `json:"targetPublicKey"`
	ExpirationSeconds int64  `json:"expirationSeconds"`
}

type createSessionResponse struct {
	CredentialBundle string `json:"credentialBundle"`
	ExpiresAt        int64  `json:"expiresAt"`
}

// CreateSession generates an ephemeral key pair and runs the ceremony.
func (c *Client) CreateSession(ctx context.Context) (core.SigningSession, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return core.SigningSession{}, fmt.Errorf("failed to generate session key: %w", err)
	}

	ecdhKey, err := key.PublicKey.ECDH()
	if err != nil {
		return core.SigningSession{}, fmt.Errorf("failed to encode session key: %w", err)
	}
	expiresAt := time.Now().Add(c.sessionTTL)

	req := createSessionRequest{
		OrganizationID:    c.orgID,
		SubOrganizationID: c.subOrgID,
		TargetPublicKey:   hexutil.Encode(ecdhKey.Bytes()),
		ExpirationSeconds: int64(c.sessionTTL.Seconds()),
	}

	var resp createSessionResponse
	if err := c.post(ctx, "/sessions", req, nil, &resp); err != nil {
		return core.SigningSession{}, err
	}
	if resp.CredentialBundle == "" {
		return core.SigningSession{}, fmt.Errorf("custody service returned no credential bundle")
	}
	if resp.ExpiresAt > 0 {
		expiresAt = time.Unix(resp.ExpiresAt, 0)
	}

	return core.SigningSession{
		PrivateKeyHex:     hexutil.Encode(key.D.Bytes()),
		CredentialBundle:  resp.CredentialBundle,
		OrganizationID:    c.orgID,
		SubOrganizationID: c.subOrgID,
		ExpiresAt:         expiresAt,
	}, nil
}

type signRequest struct {
	OrganizationID string          `json:"organizationId"`
	Payload        json.RawMessage `json:"payload"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// SignTypedData signs an EIP-712 payload under the given session.
func (c *Client) SignTypedData(ctx context.Context, session core.SigningSession, typedData json.RawMessage) (string, error) {
	return c.sign(ctx, "/sign/typed-data", session, typedData)
}

// SignUserOperation signs a user operation under the given session.
func (c *Client) SignUserOperation(ctx context.Context, session core.SigningSession, userOperation json.RawMessage) (string, error) {
	return c.sign(ctx, "/sign/user-operation", session, userOperation)
}

func (c *Client) sign(ctx context.Context, path string, session core.SigningSession, payload json.RawMessage) (string, error) {
	if !session.Valid(time.Now()) {
		return "", core.ErrSessionExpired
	}

	req := signRequest{
		OrganizationID: session.SubOrganizationID,
		Payload:        payload,
	}

	var resp signResponse
	if err := c.post(ctx, path, req, &session, &resp); err != nil {
		return "", err
	}
	if resp.Signature == "" {
		return "", fmt.Errorf("custody service returned no signature")
	}
	return resp.Signature, nil
}

// post sends a JSON request. When session is non-nil the request body is
// stamped with the session key.
func (c *Client) post(ctx context.Context, path string, body any, session *core.SigningSession, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode custody request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if session != nil {
		stamp, err := stampBody(session, encoded)
		if err != nil {
			return err
		}
		req.Header.Set("X-Credential-Bundle", session.CredentialBundle)
		req.Header.Set("X-Stamp", stamp)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("custody request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &core.APIError{Message: strings.TrimSpace(string(raw)), StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// stampBody signs the request body digest with the session's P-256 key.
func stampBody(session *core.SigningSession, body []byte) (string, error) {
	d, err := hexutil.Decode(session.PrivateKeyHex)
	if err != nil {
		return "", fmt.Errorf("invalid session key: %w", err)
	}

	key := new(ecdsa.PrivateKey)
	key.Curve = elliptic.P256()
	key.D = new(big.Int).SetBytes(d)
	key.PublicKey.X, key.PublicKey.Y = key.Curve.ScalarBaseMult(d)

	digest := sha256.Sum256(body)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to stamp request: %w", err)
	}
	return hexutil.Encode(sig), nil
}
