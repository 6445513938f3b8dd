package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meatandeat/shopguard/audit"
	"github.com/meatandeat/shopguard/codec"
	"github.com/meatandeat/shopguard/internal/config"
	"github.com/meatandeat/shopguard/securestore"
	bboltstorage "github.com/meatandeat/shopguard/storage/bbolt"
	"github.com/meatandeat/shopguard/totp"
)

func TestWritePasswordReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePasswordReport(&buf, "Abc123!@", false))

	out := buf.String()
	assert.Contains(t, out, "Strength: strong (5/5)")
	assert.Contains(t, out, "Accepted: true")
	assert.Contains(t, out, "[ok] special character")
}

func TestWritePasswordReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePasswordReport(&buf, "abc", true))

	var rep struct {
		Valid    bool   `json:"valid"`
		Score    int    `json:"score"`
		Strength string `json:"strength"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rep))
	assert.False(t, rep.Valid)
	assert.Equal(t, 1, rep.Score)
	assert.Equal(t, "weak", rep.Strength)
}

func TestFormatDetails_Sorted(t *testing.T) {
	got := formatDetails(audit.Details{"zeta": 1, "alpha": "x"})
	assert.Equal(t, "alpha=x zeta=1", got)
	assert.Empty(t, formatDetails(nil))
}

func TestFilterEntries(t *testing.T) {
	entries := []audit.Entry{
		{Event: audit.LoginFailed},
		{Event: audit.LoginSuccess},
		{Event: audit.LoginFailed},
	}
	assert.Len(t, filterEntries(entries, ""), 3)
	assert.Len(t, filterEntries(entries, audit.LoginFailed), 2)
	assert.Empty(t, filterEntries(entries, audit.Logout))
}

func TestWriteEntries(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []audit.Entry{{Timestamp: ts, Event: audit.Logout, Details: audit.Details{"email": "a***@example.com"}}}

	var buf bytes.Buffer
	require.NoError(t, writeEntries(&buf, entries, false))
	assert.Contains(t, buf.String(), "2025-01-01T12:00:00Z")
	assert.Contains(t, buf.String(), "LOGOUT")

	buf.Reset()
	require.NoError(t, writeEntries(&buf, nil, true))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, writeEntries(&buf, nil, false))
	assert.Equal(t, "no audit entries\n", buf.String())
}

func TestParseProxies(t *testing.T) {
	got, err := parseProxies([]string{"10.0.0.0/8", "::1/128"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = parseProxies([]string{"10.0.0.1"})
	assert.Error(t, err)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestTOTPCommands(t *testing.T) {
	secret, err := totp.GenerateSecret()
	require.NoError(t, err)

	out, err := execute(t, "totp", "code", secret)
	require.NoError(t, err)
	code := strings.TrimSpace(out)
	assert.Len(t, code, totp.Digits)

	out, err = execute(t, "totp", "verify", secret, code)
	require.NoError(t, err)
	assert.Contains(t, out, "code accepted")

	_, err = execute(t, "totp", "code", "not base32!")
	assert.Error(t, err)
}

func TestAuditCommands_Bbolt(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	t.Setenv("STORAGE_BACKEND", config.BackendBbolt)
	t.Setenv("DATA_DIR", dir)

	sub, err := bboltstorage.NewFromFile(filepath.Join(dir, boltFile), nil)
	require.NoError(t, err)
	c, err := codec.New(config.DefaultSecret)
	require.NoError(t, err)
	store := securestore.New(sub, c, securestore.InNamespace("client-abc"))
	logger := audit.NewLogger(store)
	ctx := context.Background()
	logger.Log(ctx, audit.LoginFailed, audit.Details{"email": "shopper@example.com", "password": "hunter2"})
	logger.Log(ctx, audit.Logout, nil)
	require.NoError(t, sub.Close())

	out, err := execute(t, "audit", "namespaces")
	require.NoError(t, err)
	assert.Contains(t, out, "client-abc")

	out, err = execute(t, "audit", "list", "--namespace", "client-abc", "--event", "login_failed", "--json")
	require.NoError(t, err)
	var entries []audit.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, audit.LoginFailed, entries[0].Event)
	assert.Equal(t, audit.Masked, entries[0].Details["password"])
}
