package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identix/internal/credential/digest"
	"identix/internal/credential/handler"
	"identix/internal/credential/token"
	jwttoken "identix/internal/jwt_token"
	"identix/internal/platform/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	color.NoColor = true
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHash(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "diploma.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("abc"), 0o600))

	out, err := execute(t, "hash", "--student-id", " CS2024001 ", "--document", doc, "--index", "3", "--json")
	require.NoError(t, err)

	var got hashOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	key := digest.MustIdentifierHash("CS2024001")
	assert.Equal(t, "CS2024001", got.StudentID)
	assert.Equal(t, key.String(), got.IdentifierHash)
	assert.Equal(t, key.String()+"/3", got.LedgerReference)
	assert.Equal(t, "0xba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got.DocumentFingerprint)
}

func TestHash_RequiresInput(t *testing.T) {
	_, err := execute(t, "hash")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	out, err := execute(t, "token", "-n", "5")
	require.NoError(t, err)

	lines := strings.Fields(out)
	require.Len(t, lines, 5)
	for _, l := range lines {
		assert.True(t, token.Valid(l), l)
	}
}

func TestIssuerToken(t *testing.T) {
	t.Setenv("ISSUER_JWT_SECRET", "credctl-test-secret")

	out, err := execute(t, "issuer-token", "--issuer-id", "registrar@uni.example")
	require.NoError(t, err)

	cfg := config.FromEnv()
	svc := jwttoken.NewJWTService(cfg.Issuer.JWTSecret, cfg.Issuer.TokenIssuer, cfg.Issuer.TokenTTL)
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "registrar@uni.example", claims.Subject)
	assert.Equal(t, "issuer", claims.Role)
}

func verifyServer(t *testing.T, status int, resp handler.VerifyResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req handler.VerifyRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "CS2024001", req.StudentID)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerify(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		srv := verifyServer(t, http.StatusOK, handler.VerifyResponse{Valid: true, Outcome: "valid"})
		out, err := execute(t, "verify", "--server", srv.URL, "--student-id", "CS2024001", "--token", "IDX-A7B2C9")
		require.NoError(t, err)
		assert.Contains(t, out, "Outcome: valid")
	})

	t.Run("mismatch exits non-zero", func(t *testing.T) {
		srv := verifyServer(t, http.StatusOK, handler.VerifyResponse{Outcome: "ledger_mismatch"})
		_, err := execute(t, "verify", "--server", srv.URL, "--student-id", "CS2024001", "--token", "IDX-A7B2C9")
		var notValid errNotValid
		require.ErrorAs(t, err, &notValid)
		assert.Equal(t, "ledger_mismatch", notValid.outcome)
	})

	t.Run("transport error is inconclusive", func(t *testing.T) {
		srv := verifyServer(t, http.StatusServiceUnavailable, handler.VerifyResponse{Outcome: "transport_error"})
		_, err := execute(t, "verify", "--server", srv.URL, "--student-id", "CS2024001", "--token", "IDX-A7B2C9")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inconclusive")
	})
}

func TestReconcile_RejectsInMemoryBackends(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("STORAGE_BACKEND", "memory")

	t.Run("memory ledger", func(t *testing.T) {
		t.Setenv("LEDGER_BACKEND", "memory")
		t.Setenv("METADATA_BACKEND", "memory")

		out, err := execute(t, "reconcile")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "LEDGER_BACKEND=memory")
		assert.NotContains(t, out, "Scanned")
	})

	t.Run("memory metadata store", func(t *testing.T) {
		t.Setenv("LEDGER_BACKEND", "leveldb")
		t.Setenv("LEDGER_LEVELDB_PATH", filepath.Join(t.TempDir(), "ledger"))
		t.Setenv("METADATA_BACKEND", "memory")

		_, err := execute(t, "reconcile")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "METADATA_BACKEND=memory")
	})
}
