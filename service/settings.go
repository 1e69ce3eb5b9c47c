package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openfleet/fleetd/ports"
)

// PublicSettings is the unauthenticated application configuration.
type PublicSettings struct {
	ClientID string   `json:"clientId"`
	LoginURL string   `json:"loginUrl"`
	Oracles  []Oracle `json:"oracles"`
}

// PrivateSettings is the operator-scoped configuration, including the
// key-custody endpoints the signing client needs.
type PrivateSettings struct {
	AccountsAPIURL string `json:"accountsApiUrl"`
	PaymasterURL   string `json:"paymasterUrl"`
	RPCURL         string `json:"rpcUrl"`
	BundlerURL     string `json:"bundlerUrl"`
	Environment    string `json:"environment"`
	CustodyOrgID   string `json:"custodyOrgId"`
	CustodyAPIURL  string `json:"custodyApiUrl"`
	CustodyRPID    string `json:"custodyRpId"`
}

// AccountInfo describes the operator's custody account.
type AccountInfo struct {
	SubOrganizationID string `json:"subOrganizationId"`
	IsDeployed        bool   `json:"isDeployed"`
	HasPasskey        bool   `json:"hasPasskey"`
	EmailVerified     bool   `json:"emailVerified"`
}

const (
	publicSettingsKey  = "settings:public"
	privateSettingsKey = "settings:private"
	accountInfoKey     = "settings:account"
)

// Settings fetches and caches application settings.
type Settings struct {
	api   ports.APIClient
	store ports.Store
	log   *zap.Logger

	mu      sync.RWMutex
	public  *PublicSettings
	private *PrivateSettings
	account *AccountInfo
}

func NewSettings(api ports.APIClient, store ports.Store, logger *zap.Logger) *Settings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Settings{api: api, store: store, log: logger}
}

// FetchPublicSettings retrieves and caches the public settings.
func (s *Settings) FetchPublicSettings(ctx context.Context) (*PublicSettings, error) {
	var settings PublicSettings
	if err := s.api.Call(ctx, http.MethodGet, "/public/settings", nil, &settings, ports.CallOptions{}); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.public = &settings
	s.mu.Unlock()
	s.cache(ctx, publicSettingsKey, settings)
	return &settings, nil
}

// FetchPrivateSettings retrieves and caches the operator settings.
func (s *Settings) FetchPrivateSettings(ctx context.Context) (*PrivateSettings, error) {
	var settings PrivateSettings
	if err := s.api.Call(ctx, http.MethodGet, "/settings", nil, &settings, authOracle); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.private = &settings
	s.mu.Unlock()
	s.cache(ctx, privateSettingsKey, settings)
	return &settings, nil
}

// FetchAccountInfo looks up the operator's custody account by email on
// the accounts API named in the private settings.
func (s *Settings) FetchAccountInfo(ctx context.Context, email string) (*AccountInfo, error) {
	private, err := s.PrivateSettings(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimSuffix(private.AccountsAPIURL, "/") + "/api/account/" + email
	var account AccountInfo
	if err := s.api.Call(ctx, http.MethodGet, endpoint, nil, &account, ports.CallOptions{}); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.account = &account
	s.mu.Unlock()
	s.cache(ctx, accountInfoKey, account)
	return &account, nil
}

// PrivateSettings returns the cached private settings, fetching them on
// first use.
func (s *Settings) PrivateSettings(ctx context.Context) (*PrivateSettings, error) {
	s.mu.RLock()
	cached := s.private
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	var settings PrivateSettings
	if s.restore(ctx, privateSettingsKey, &settings) {
		s.mu.Lock()
		s.private = &settings
		s.mu.Unlock()
		return &settings, nil
	}
	return s.FetchPrivateSettings(ctx)
}

// AccountInfo returns the cached account info, if any.
func (s *Settings) AccountInfo(ctx context.Context) *AccountInfo {
	s.mu.RLock()
	cached := s.account
	s.mu.RUnlock()
	if cached != nil {
		return cached
	}

	var account AccountInfo
	if s.restore(ctx, accountInfoKey, &account) {
		s.mu.Lock()
		s.account = &account
		s.mu.Unlock()
		return &account
	}
	return nil
}

func (s *Settings) cache(ctx context.Context, key string, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, string(encoded), 0); err != nil {
		s.log.Warn("failed to cache settings", zap.String("key", key), zap.Error(err))
	}
}

func (s *Settings) restore(ctx context.Context, key string, out any) bool {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}
