package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiPantry/pkg/inventory"
)

const testMasterKey = "$2a$10$test-master-key"

func newJSONBinTestServer(t *testing.T, handler http.HandlerFunc) *JSONBinStorage {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewJSONBinStorage(JSONBinConfig{
		BaseURL:   server.URL + "/v3/b/",
		MasterKey: testMasterKey,
	}, server.Client(), zap.NewNop())
}

func TestJSONBinStorage_Fetch(t *testing.T) {
	store := newJSONBinTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v3/b/bin123", r.URL.Path)
		assert.Equal(t, testMasterKey, r.Header.Get("X-Master-Key"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"record": {"inventory": [{"name": "apple", "quantity": 3, "unit": "items", "expected_expiry_date": "15/11/2025", "bag": "red"}]}, "metadata": {"id": "bin123", "private": false}}`)
	})

	doc, err := store.Fetch(context.Background(), "bin123")

	require.NoError(t, err)
	require.Len(t, doc.Inventory, 1)
	assert.Equal(t, "apple", doc.Inventory[0].Name)
	raw, ok := doc.Inventory[0].Field("bag")
	require.True(t, ok)
	assert.JSONEq(t, `"red"`, string(raw))
}

func TestJSONBinStorage_FetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"message": "Bin not found"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, inventory.ErrDocumentNotFound)
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"message": "Invalid X-Master-Key"}`,
			check: func(t *testing.T, err error) {
				var transportErr *inventory.TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
				assert.Contains(t, transportErr.Body, "Invalid X-Master-Key")
			},
		},
		{
			name:   "missing record",
			status: http.StatusOK,
			body:   `{"metadata": {"id": "bin123"}}`,
			check: func(t *testing.T, err error) {
				var transportErr *inventory.TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, "fetch", transportErr.Operation)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newJSONBinTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			doc, err := store.Fetch(context.Background(), "bin123")

			assert.Nil(t, doc)
			tt.check(t, err)
		})
	}
}

func TestJSONBinStorage_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	store := NewJSONBinStorage(JSONBinConfig{BaseURL: url, MasterKey: testMasterKey}, nil, nil)

	_, err := store.Fetch(context.Background(), "bin123")

	var transportErr *inventory.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 0, transportErr.StatusCode)
	assert.NotNil(t, transportErr.Cause)
}

func TestJSONBinStorage_Persist(t *testing.T) {
	var received map[string]json.RawMessage
	store := newJSONBinTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v3/b/bin123", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, testMasterKey, r.Header.Get("X-Master-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		io.WriteString(w, `{"record": {}, "metadata": {"parentId": "bin123"}}`)
	})

	err := store.Persist(context.Background(), "bin123", &inventory.Document{})

	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(received["inventory"]))
}

func TestJSONBinStorage_PersistFailure(t *testing.T) {
	store := newJSONBinTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"message": "Requests exhausted"}`)
	})

	err := store.Persist(context.Background(), "bin123", &inventory.Document{})

	var transportErr *inventory.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusTooManyRequests, transportErr.StatusCode)
}

func TestJSONBinStorage_Create(t *testing.T) {
	store := newJSONBinTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/b", r.URL.Path)
		assert.Equal(t, "false", r.Header.Get("X-Bin-Private"))
		io.WriteString(w, `{"record": {"inventory": []}, "metadata": {"id": "6731f5c8e41b4d34e4509b2a", "private": false}}`)
	})

	id, err := store.Create(context.Background(), &inventory.Document{})

	require.NoError(t, err)
	assert.Equal(t, "6731f5c8e41b4d34e4509b2a", id)
}

func TestJSONBinStorage_CreateWithoutID(t *testing.T) {
	store := newJSONBinTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"record": {"inventory": []}}`)
	})

	_, err := store.Create(context.Background(), &inventory.Document{})

	var transportErr *inventory.TransportError
	assert.ErrorAs(t, err, &transportErr)
}
