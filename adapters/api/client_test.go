package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleetd/core"
	"github.com/openfleet/fleetd/ports"
)

type recordedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			header: r.Header.Clone(),
			body:   body,
		})
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestClientCallDecodesResponse(t *testing.T) {
	server, requests := newTestServer(t, http.StatusOK, `{"statuses":[{"vin":"VIN1","status":"Success"}]}`)
	client := NewClient(Config{BaseURL: server.URL})

	var out struct {
		Statuses []core.VehicleStatus `json:"statuses"`
	}
	err := client.Call(context.Background(), http.MethodGet, "/vehicle/verify", nil, &out, ports.CallOptions{})
	require.NoError(t, err)
	require.Len(t, out.Statuses, 1)
	assert.Equal(t, core.StatusSuccess, out.Statuses[0].Status)
	require.Len(t, *requests, 1)
	assert.Equal(t, "/vehicle/verify", (*requests)[0].path)
}

func TestClientOraclePathPrefix(t *testing.T) {
	server, requests := newTestServer(t, http.StatusOK, `{}`)
	client := NewClient(Config{BaseURL: server.URL})
	client.SetOracle("oracle-9")

	err := client.Call(context.Background(), http.MethodGet, "/vehicle/mint", nil, nil, ports.CallOptions{Oracle: true})
	require.NoError(t, err)
	require.Len(t, *requests, 1)
	assert.Equal(t, "/oracle/oracle-9/vehicle/mint", (*requests)[0].path)
}

func TestClientOracleRequiredButUnset(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unreachable.invalid"})

	err := client.Call(context.Background(), http.MethodGet, "/vehicle/mint", nil, nil, ports.CallOptions{Oracle: true})

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrNoOracle.Error(), apiErr.Message)
}

func TestClientAuthAndTenantHeaders(t *testing.T) {
	server, requests := newTestServer(t, http.StatusOK, `[]`)
	client := NewClient(Config{
		BaseURL: server.URL,
		Tokens:  NewStaticTokenSource("opaque-token"),
	})
	client.SetTenant("tenant-3")

	err := client.Call(context.Background(), http.MethodGet, "/fleet/groups", nil, nil,
		ports.CallOptions{Auth: true, Tenant: true})
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.Equal(t, "Bearer opaque-token", (*requests)[0].header.Get("Authorization"))
	assert.Equal(t, "tenant-3", (*requests)[0].header.Get(TenantHeader))
}

func TestClientAuthWithoutTokenSource(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unreachable.invalid"})

	err := client.Call(context.Background(), http.MethodGet, "/settings", nil, nil, ports.CallOptions{Auth: true})

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, core.ErrNotAuthenticated.Error(), apiErr.Message)
}

func TestClientErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		want     string
	}{
		{"message field", http.StatusBadRequest, `{"message":"VIN already minted"}`, "VIN already minted"},
		{"error field", http.StatusForbidden, `{"error":"Forbidden"}`, "Forbidden"},
		{"raw text", http.StatusBadGateway, "upstream down", "upstream down"},
		{"empty body", http.StatusInternalServerError, "", "HTTP error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, _ := newTestServer(t, tc.status, tc.response)
			client := NewClient(Config{BaseURL: server.URL})

			err := client.Call(context.Background(), http.MethodGet, "/settings", nil, nil, ports.CallOptions{})

			var apiErr *core.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.want, apiErr.Message)
			assert.Equal(t, tc.status, apiErr.StatusCode)
		})
	}
}

func TestClientAbsoluteURLPassthrough(t *testing.T) {
	server, requests := newTestServer(t, http.StatusOK, `{"subOrganizationId":"sub-1"}`)
	client := NewClient(Config{BaseURL: "http://other-backend.invalid"})

	var out map[string]string
	err := client.Call(context.Background(), http.MethodGet, server.URL+"/api/account/x", nil, &out, ports.CallOptions{})
	require.NoError(t, err)
	require.Len(t, *requests, 1)
	assert.Equal(t, "/api/account/x", (*requests)[0].path)
	assert.Equal(t, "sub-1", out["subOrganizationId"])
}

func TestClientSendsJSONBody(t *testing.T) {
	server, requests := newTestServer(t, http.StatusOK, `{}`)
	client := NewClient(Config{BaseURL: server.URL})

	payload := map[string]string{"vin": "VIN1"}
	err := client.Call(context.Background(), http.MethodPost, "/vehicle/verify", payload, nil, ports.CallOptions{})
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.Equal(t, "application/json", (*requests)[0].header.Get("Content-Type"))
	assert.JSONEq(t, `{"vin":"VIN1"}`, string((*requests)[0].body))
}
