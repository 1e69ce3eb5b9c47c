package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfleet/fleetd/adapters/store"
)

func TestSettingsFetchAccountInfo(t *testing.T) {
	api := newFakeAPI()
	api.stub("GET", "/settings", PrivateSettings{
		AccountsAPIURL: "https://accounts.example.com/",
		CustodyAPIURL:  "https://custody.example.com",
		CustodyOrgID:   "org-1",
	})
	api.stub("GET", "https://accounts.example.com/api/account/op@example.com", AccountInfo{
		SubOrganizationID: "sub-org-9",
		HasPasskey:        true,
	})

	s := NewSettings(api, store.NewMemoryStore(), zap.NewNop())
	account, err := s.FetchAccountInfo(context.Background(), "op@example.com")
	require.NoError(t, err)
	assert.Equal(t, "sub-org-9", account.SubOrganizationID)
	assert.True(t, account.HasPasskey)

	// The accounts call goes to the absolute URL from the settings,
	// trailing slash collapsed.
	calls := api.callsTo("GET", "https://accounts.example.com/api/account/op@example.com")
	require.Len(t, calls, 1)
}

func TestSettingsFetchPublicSettings(t *testing.T) {
	api := newFakeAPI()
	api.stub("GET", "/public/settings", PublicSettings{
		ClientID: "client-1",
		Oracles:  []Oracle{{OracleID: "oracle-1"}},
	})

	s := NewSettings(api, store.NewMemoryStore(), zap.NewNop())
	settings, err := s.FetchPublicSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "client-1", settings.ClientID)
	require.Len(t, settings.Oracles, 1)
}

func TestSettingsPrivateSettingsCached(t *testing.T) {
	api := newFakeAPI()
	api.stub("GET", "/settings", PrivateSettings{Environment: "production"})

	s := NewSettings(api, store.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	first, err := s.PrivateSettings(ctx)
	require.NoError(t, err)
	second, err := s.PrivateSettings(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, api.callsTo("GET", "/settings"), 1)
}

func TestSettingsRestoredFromStore(t *testing.T) {
	kv := store.NewMemoryStore()
	ctx := context.Background()

	api := newFakeAPI()
	api.stub("GET", "/settings", PrivateSettings{Environment: "staging", CustodyRPID: "example.com"})
	s := NewSettings(api, kv, zap.NewNop())
	_, err := s.FetchPrivateSettings(ctx)
	require.NoError(t, err)

	// A fresh instance over the same store serves the cached copy
	// without a network call.
	api2 := newFakeAPI()
	s2 := NewSettings(api2, kv, zap.NewNop())
	restored, err := s2.PrivateSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "staging", restored.Environment)
	assert.Equal(t, "example.com", restored.CustodyRPID)
	assert.Empty(t, api2.calls)
}
