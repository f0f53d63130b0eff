package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteRegisterProof(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/proofs", r.URL.Path)
		require.Equal(t, "Bearer token123", r.Header.Get("Authorization"))

		var params RegisterParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "aabbcc", params.Hash, "hash is lower-cased before sending")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Registration{TxHash: "0xabc", BlockNumber: 7})
	}))
	defer server.Close()

	remote := NewRemote(server.URL, "token123")
	receipt, err := remote.RegisterProof(context.Background(), RegisterParams{
		ProofID: "proof-1", Hash: "AABBCC", CID: "bafyone", Registrant: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.TxHash)
	assert.Equal(t, uint64(7), receipt.BlockNumber)
}

func TestRemoteStatusMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{"bad request", http.StatusBadRequest, "", ErrInvalidInput},
		{"unauthorized", http.StatusUnauthorized, "", ErrUnauthorized},
		{"forbidden", http.StatusForbidden, "", ErrUnauthorized},
		{"conflict proof id", http.StatusConflict, `{"reason":"duplicate_proof_id"}`, ErrDuplicateProofID},
		{"conflict cid", http.StatusConflict, `{"reason":"duplicate_cid"}`, ErrDuplicateCID},
		{"conflict hash", http.StatusConflict, `{"reason":"duplicate_hash"}`, ErrDuplicateHash},
		{"server error", http.StatusInternalServerError, "", ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				if tc.body != "" {
					w.Write([]byte(tc.body))
				}
			}))
			defer server.Close()

			remote := NewRemote(server.URL, "")
			_, err := remote.RegisterProof(context.Background(), RegisterParams{
				ProofID: "proof-1", Hash: "hash", CID: "cid",
			})
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestRemoteGetProofNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	remote := NewRemote(server.URL, "")

	_, err := remote.GetProof(context.Background(), "proof-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	valid, err := remote.VerifyProof(context.Background(), "proof-missing", "hash")
	require.NoError(t, err, "unknown ids verify false, not an error")
	assert.False(t, valid)
}

func TestRemoteUnreachable(t *testing.T) {
	remote := NewRemote("http://127.0.0.1:1", "")

	_, err := remote.RegisterProof(context.Background(), RegisterParams{
		ProofID: "proof-1", Hash: "hash", CID: "cid",
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}
