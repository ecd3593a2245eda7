package rpc

import (
	"context"
	"encoding/json"
	"net"
	"net/rpc/jsonrpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mpadronm90/simple-chatbot-platform/internal/auth"
	"github.com/mpadronm90/simple-chatbot-platform/internal/config"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
	"github.com/mpadronm90/simple-chatbot-platform/internal/facade"
	"github.com/mpadronm90/simple-chatbot-platform/internal/policy"
	"github.com/mpadronm90/simple-chatbot-platform/internal/service"
	"github.com/mpadronm90/simple-chatbot-platform/tests/helpers"
)

func TestDispatchOverJSONRPC(t *testing.T) {
	cfg := &config.Config{RunMode: domain.RunModePolling, PollInterval: time.Millisecond, PollMaxAttempts: 30}
	svc := service.New(helpers.NewTestMemoryStore(t), helpers.NewStubBackend(), cfg, zap.NewNop())
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	tokens := auth.NewTokenService("rpc-secret")

	srv, err := NewServer(facade.NewDispatcher(svc, engine, zap.NewNop()), tokens, zap.NewNop())
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	defer ln.Close()

	client, err := jsonrpc.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	admin, err := tokens.Issue(domain.Identity{UID: "admin1", Admin: true}, time.Hour)
	require.NoError(t, err)

	var reply DispatchReply
	err = client.Call("Chatbot.Dispatch", &DispatchArgs{
		Token:   admin,
		Request: domain.DispatchRequest{Action: domain.ActionCreateAssistant, Data: json.RawMessage(`{"name":"Bot"}`)},
	}, &reply)
	require.NoError(t, err)

	var agent domain.Agent
	require.NoError(t, json.Unmarshal(reply.Result, &agent))
	assert.Equal(t, "Bot", agent.Name)
	assert.NotEmpty(t, agent.ID)

	err = client.Call("Chatbot.Dispatch", &DispatchArgs{
		Request: domain.DispatchRequest{Action: domain.ActionGetAgents},
	}, &reply)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthenticated")
}

func TestStartThenShutdown(t *testing.T) {
	srv, err := NewServer(facade.NewDispatcher(nil, nil, zap.NewNop()), auth.NewTokenService("rpc-secret"), zap.NewNop())
	require.NoError(t, err)

	started := make(chan error, 1)
	go func() { started <- srv.Start("127.0.0.1:0") }()
	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestShutdownBeforeServe(t *testing.T) {
	srv, err := NewServer(facade.NewDispatcher(nil, nil, zap.NewNop()), auth.NewTokenService("rpc-secret"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, srv.Shutdown(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.NoError(t, srv.Serve(ln))
	_, err = ln.Accept()
	assert.ErrorIs(t, err, net.ErrClosed)
}
