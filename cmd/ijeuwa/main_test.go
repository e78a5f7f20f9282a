package main

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rotiminicol/ijeuwa/stubapi"
	"github.com/rotiminicol/ijeuwa/types"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	username, password = "", ""
	clearNotifications = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func stub(t *testing.T) {
	t.Helper()
	srv, err := stubapi.New(stubapi.Options{Secret: "cmd-test", HashCost: bcrypt.MinCost})
	require.NoError(t, err)
	_, err = srv.CreateUser(types.Credentials{Username: "bob", Password: "secret1"})
	require.NoError(t, err)
	_, err = srv.CreateUser(types.Credentials{Username: "alice", Password: "secret2"})
	require.NoError(t, err)
	_, err = srv.Notify("bob", "alice", types.NotificationFollow, "")
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Setenv("IJEUWA_API_BASE_URL", ts.URL)
}

func TestRoute(t *testing.T) {
	stub(t)

	out := run(t, "route", "/profile/alice")
	assert.Contains(t, out, "/profile/alice redirects to /login")

	out = run(t, "route", "/profile/alice", "-u", "bob", "-p", "secret1")
	assert.Contains(t, out, "renders profile")
	assert.Contains(t, out, "username = alice")
}

func TestNotificationsClear(t *testing.T) {
	stub(t)

	out := run(t, "notifications", "--clear", "-u", "bob", "-p", "secret1")
	assert.Contains(t, out, "@alice followed you")
	assert.Contains(t, out, "after clear:\nNo notifications")
}

func TestLoginLogout(t *testing.T) {
	stub(t)

	out := run(t, "login", "-u", "bob", "-p", "secret1")
	assert.Contains(t, out, "SESSION  → bob (ready")
	assert.Contains(t, out, "/login redirects to /home")

	out = run(t, "logout", "-u", "bob", "-p", "secret1")
	assert.Contains(t, out, "SESSION  → nobody (ready")
	assert.Contains(t, out, "/home redirects to /login")
}

func TestBench(t *testing.T) {
	out := run(t, "bench", "--goroutines", "8", "--ops", "20", "--keys", "4", "--latency", "0s")
	assert.Contains(t, out, "8 readers → 1 fetch(es)")
	assert.Contains(t, out, "Total Operations : 160")
}
