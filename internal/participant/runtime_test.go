package participant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genesis-run/genesis/internal/advertisement"
	"github.com/genesis-run/genesis/internal/transport"
)

func TestInterfaceParticipantReachesReadyWithoutAdvertising(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	rt := New(Options{Transport: tr, Kind: KindInterface, DisplayName: "chat-ui"})
	require.Equal(t, StateJoining, rt.State())
	require.NoError(t, rt.Start(ctx))
	require.Equal(t, StateReady, rt.State())
}

func TestServiceParticipantStaysDiscoveringUntilFirstAdvertisement(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	rt := New(Options{Transport: tr, Kind: KindService, DisplayName: "calculator"})
	require.NoError(t, rt.Start(ctx))
	require.Equal(t, StateDiscovering, rt.State())

	_, err := rt.Advertise(ctx, advertisement.KindService, "calculator", "calculator", advertisement.ServicePayload{Functions: []string{"add"}}, nil)
	require.NoError(t, err)
	require.Equal(t, StateReady, rt.State())
}

func TestBusyReadyCycle(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	rt := New(Options{Transport: tr, Kind: KindInterface})
	require.NoError(t, rt.Start(ctx))
	require.NoError(t, rt.EnterBusy(ctx))
	require.Equal(t, StateBusy, rt.State())
	require.NoError(t, rt.ExitBusy(ctx))
	require.Equal(t, StateReady, rt.State())
}

func TestCloseIsTerminalAndWithdrawsAdvertisements(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	rt := New(Options{Transport: tr, Kind: KindService})
	require.NoError(t, rt.Start(ctx))
	ad, err := rt.Advertise(ctx, advertisement.KindService, "calculator", "calculator", advertisement.ServicePayload{}, nil)
	require.NoError(t, err)

	require.NoError(t, rt.Close(ctx))
	require.Equal(t, StateOffline, rt.State())

	cache, err := advertisement.NewCache(ctx, tr, nil)
	require.NoError(t, err)
	defer cache.Close()
	for _, a := range cache.Snapshot() {
		require.NotEqual(t, ad.AdvertisementID, a.AdvertisementID)
	}

	require.NoError(t, rt.Close(ctx))
	require.Error(t, rt.EnterBusy(ctx))
}

func TestThreeConsecutiveTransportFailuresDegrade(t *testing.T) {
	tr := transport.NewInMemory()
	defer tr.Close()
	ctx := context.Background()

	rt := New(Options{Transport: tr, Kind: KindInterface})
	require.NoError(t, rt.Start(ctx))
	rt.ReportTransportFailure(ctx)
	rt.ReportTransportFailure(ctx)
	require.Equal(t, StateReady, rt.State())
	rt.ReportTransportFailure(ctx)
	require.Equal(t, StateDegraded, rt.State())
}
