package rpcplane

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/genesis-run/genesis/internal/generrors"
	"github.com/genesis-run/genesis/internal/transport"
)

func TestCallReceivesExactlyOneReply(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	server := New(tr, "calculator-1", nil)
	stop, err := server.Serve(ctx, "Calculator", func(_ context.Context, req Request) Reply {
		var args struct{ X, Y float64 }
		require.NoError(t, json.Unmarshal(req.Arguments, &args))
		result, _ := json.Marshal(args.X + args.Y)
		return OK(result)
	})
	require.NoError(t, err)
	defer stop()

	client := New(tr, "agent-1", nil)
	defer client.Close()
	args, _ := json.Marshal(map[string]float64{"X": 2, "Y": 3})
	reply, err := client.Call(ctx, "Calculator", "calculator-1", "add", args, time.Now().Add(2*time.Second), "")
	require.NoError(t, err)
	require.Equal(t, StatusOK, reply.Status)

	var sum float64
	require.NoError(t, json.Unmarshal(reply.Result, &sum))
	require.Equal(t, 5.0, sum)
}

func TestCallWithZeroDeadlineIsImmediateTimeoutNoRequestEmitted(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	var served bool
	server := New(tr, "svc-1", nil)
	stop, err := server.Serve(ctx, "Calculator", func(_ context.Context, req Request) Reply {
		served = true
		return OK(nil)
	})
	require.NoError(t, err)
	defer stop()

	client := New(tr, "agent-1", nil)
	defer client.Close()

	_, err = client.Call(ctx, "Calculator", "svc-1", "add", json.RawMessage(`{}`), time.Time{}, "")
	require.Error(t, err)
	require.True(t, generrors.Is(err, generrors.KindTimeout))

	time.Sleep(50 * time.Millisecond)
	require.False(t, served, "no request should be emitted for an already-elapsed deadline")
}

func TestCallTimesOutWhenServerIsSlowAndDiscardsLateReply(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	server := New(tr, "slow-1", nil)
	stop, err := server.Serve(ctx, "Calculator", func(ctx context.Context, req Request) Reply {
		time.Sleep(300 * time.Millisecond)
		return OK(nil)
	})
	require.NoError(t, err)
	defer stop()

	client := New(tr, "agent-1", nil)
	defer client.Close()

	_, err = client.Call(ctx, "Calculator", "slow-1", "add", json.RawMessage(`{}`), time.Now().Add(50*time.Millisecond), "")
	require.Error(t, err)
	require.True(t, generrors.Is(err, generrors.KindTimeout))

	// The late reply, once it lands, must find no pending slot.
	time.Sleep(500 * time.Millisecond)
	client.mu.Lock()
	stillPending := len(client.pending) > 0
	client.mu.Unlock()
	require.False(t, stillPending)
}

func TestServeIgnoresRequestsAddressedToOtherParticipants(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	var handled bool
	server := New(tr, "svc-a", nil)
	stop, err := server.Serve(ctx, "Calculator", func(_ context.Context, req Request) Reply {
		handled = true
		return OK(nil)
	})
	require.NoError(t, err)
	defer stop()

	client := New(tr, "agent-1", nil)
	defer client.Close()
	_, _ = client.Call(ctx, "Calculator", "svc-b", "add", json.RawMessage(`{}`), time.Now().Add(100*time.Millisecond), "")
	require.False(t, handled)
}
