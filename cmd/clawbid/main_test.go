package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singhnitish007/Clawbid.org/internal/auth"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestTokenCmd_IssuesVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	out, err := execute(t, context.Background(), "token", "--agent-id", "agent-42", "--name", "Ada", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.NewVerifier("test-secret").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "agent-42", claims.AgentID)
	assert.Equal(t, "Ada", claims.Name)
}

func TestTokenCmd_Rejections(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, context.Background(), "token", "--agent-id", "agent-42")
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "test-secret")
	_, err = execute(t, context.Background(), "token")
	require.ErrorContains(t, err, "--agent-id")
}

func TestMigrateCmd_RequiresPostgres(t *testing.T) {
	t.Setenv("CLAWBID_STORE", "memory")

	_, err := execute(t, context.Background(), "migrate")
	require.ErrorContains(t, err, "postgres")
}

func TestServeCmd_RejectsUnknownStore(t *testing.T) {
	_, err := execute(t, context.Background(), "serve", "--store", "redis")
	require.ErrorContains(t, err, "store must be")
}

func TestServeCmd_MemoryStoreStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, "serve", "--store", "memory", "--port", "0")
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after context cancellation")
	}
}
