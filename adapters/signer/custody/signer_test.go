package custody

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openfleet/fleetd/adapters/store"
	"github.com/openfleet/fleetd/core"
)

// fakeSessionAPI hands out numbered sessions and signs with a fixed
// placeholder.
type fakeSessionAPI struct {
	mu        sync.Mutex
	created   atomic.Int64
	createErr error
	expiresAt time.Time
	lastUsed  core.SigningSession
}

func (f *fakeSessionAPI) CreateSession(ctx context.Context) (core.SigningSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return core.SigningSession{}, f.createErr
	}
	n := f.created.Add(1)
	return core.SigningSession{
		CredentialBundle: "bundle-" + strconv.FormatInt(n, 10),
		ExpiresAt:        f.expiresAt,
	}, nil
}

func (f *fakeSessionAPI) SignTypedData(_ context.Context, session core.SigningSession, _ json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUsed = session
	return "0xtyped", nil
}

func (f *fakeSessionAPI) SignUserOperation(_ context.Context, session core.SigningSession, _ json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUsed = session
	return "0xuserop", nil
}

func TestSignerReusesSession(t *testing.T) {
	now := time.Now()
	api := &fakeSessionAPI{}
	s := NewSigner(api, nil, zap.NewNop(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	payload := json.RawMessage(`{"types":{}}`)
	for range 5 {
		sig, err := s.SignTypedData(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, "0xtyped", sig)
	}

	assert.Equal(t, int64(1), api.created.Load(), "one ceremony covers the whole window")
}

func TestSignerRenewsExpiredSession(t *testing.T) {
	now := time.Now()
	api := &fakeSessionAPI{}
	s := NewSigner(api, nil, zap.NewNop(),
		WithClock(func() time.Time { return now }),
		WithSessionTTL(30*time.Minute))
	ctx := context.Background()

	_, err := s.SignUserOperation(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), api.created.Load())

	// Inside the window: same session.
	now = now.Add(29 * time.Minute)
	_, err = s.SignUserOperation(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), api.created.Load())

	// Past the window: a new ceremony.
	now = now.Add(2 * time.Minute)
	_, err = s.SignUserOperation(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), api.created.Load())
}

func TestSignerConcurrentRenewalSharesOneCeremony(t *testing.T) {
	now := time.Now()
	api := &fakeSessionAPI{}
	s := NewSigner(api, nil, zap.NewNop(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SignTypedData(ctx, json.RawMessage(`{}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), api.created.Load())
}

func TestSignerRestoresPersistedSession(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	kv := store.NewMemoryStore()
	ctx := context.Background()

	api := &fakeSessionAPI{}
	s := NewSigner(api, kv, zap.NewNop(), WithClock(clock))
	_, err := s.SignTypedData(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)

	// A fresh signer over the same store reuses the persisted session
	// instead of running another ceremony.
	api2 := &fakeSessionAPI{}
	s2 := NewSigner(api2, kv, zap.NewNop(), WithClock(clock))
	_, err = s2.SignTypedData(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(0), api2.created.Load())
}

func TestSignerCeremonyFailure(t *testing.T) {
	api := &fakeSessionAPI{createErr: errors.New("passkey ceremony rejected")}
	s := NewSigner(api, nil, zap.NewNop())

	_, err := s.SignTypedData(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create signing session")
}

func TestSignerLogout(t *testing.T) {
	now := time.Now()
	kv := store.NewMemoryStore()
	api := &fakeSessionAPI{}
	s := NewSigner(api, kv, zap.NewNop(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := s.SignTypedData(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)

	s.Logout(ctx)

	_, err = s.SignTypedData(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), api.created.Load(), "logout forces a new ceremony")
}
