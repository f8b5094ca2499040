package uap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"wcm/internal/driver/fakedriver"
	"wcm/internal/events"
	"wcm/internal/metrics"
	"wcm/internal/store"
	"wcm/internal/types"
)

func newTestSM(t *testing.T, staCh STAChannel, allowed AllowedChannels) (*SM, *fakedriver.Fake, *store.Store, *[]types.CallbackEvent) {
	t.Helper()
	bus := events.New(20)
	drv := fakedriver.New(bus)
	st := store.New(5, nil)
	var got []types.CallbackEvent
	sm := New(Params{
		Driver:     drv,
		Store:      st,
		Callback:   func(e types.CallbackEvent) { got = append(got, e) },
		Metrics:    metrics.New(),
		Log:        zaptest.NewLogger(t).Sugar(),
		STAChannel: staCh,
		Allowed:    allowed,
	})
	return sm, drv, st, &got
}

func addUAPProfile(t *testing.T, st *store.Store, name string, channel int) int {
	t.Helper()
	idx, err := st.Add(types.Profile{
		Name: name,
		SSID: name + "-ssid",
		Role: types.RoleUAP,
		Security: types.Security{
			Type:       types.SecurityWPA2,
			Passphrase: "supersecret",
		},
		Channel: channel,
		IPv4:    types.IPv4Config{Mode: types.AddrStatic, Addr: [4]byte{192, 168, 1, 1}, Gateway: [4]byte{192, 168, 1, 1}},
	})
	require.NoError(t, err)
	return idx
}

func TestStartInheritsSTAChannel(t *testing.T) {
	sm, drv, st, _ := newTestSM(t, func() (int, bool) { return 11, true }, func() []int { return []int{1, 6, 11} })
	idx := addUAPProfile(t, st, "guest", 0)

	sm.Start(idx)
	assert.Equal(t, types.UAPConfigured, sm.State())
	require.Len(t, drv.UapStartCalls, 1)
	assert.Equal(t, 11, drv.UapStartCalls[0].Channel)
	assert.Equal(t, 11, sm.CurrentChannel())
}

func TestStartComputesACSWhenSTANotAssociated(t *testing.T) {
	sm, drv, st, _ := newTestSM(t, func() (int, bool) { return 0, false }, func() []int { return []int{36, 1, 6} })
	idx := addUAPProfile(t, st, "guest", 0)

	sm.Start(idx)
	assert.Equal(t, types.UAPConfigured, sm.State())
	require.Len(t, drv.UapStartCalls, 1)
	assert.Equal(t, 1, drv.UapStartCalls[0].Channel, "ACS picks the lowest allowed channel")
}

func TestStartRejectsConstrainedChannelOutsideAllowedSet(t *testing.T) {
	sm, drv, st, got := newTestSM(t, nil, func() []int { return []int{1, 6, 11} })
	idx := addUAPProfile(t, st, "fixed", 40)

	sm.Start(idx)
	assert.Equal(t, types.UAPInitializing, sm.State())
	assert.Empty(t, drv.UapStartCalls)
	require.NotEmpty(t, *got)
	assert.Equal(t, types.EvtUapStartFailed, (*got)[len(*got)-1].Event)
}

func TestFullLifecycle(t *testing.T) {
	sm, drv, st, got := newTestSM(t, func() (int, bool) { return 0, false }, func() []int { return []int{6} })
	idx := addUAPProfile(t, st, "guest", 0)

	sm.Start(idx)
	require.Equal(t, types.UAPConfigured, sm.State())

	sm.HandleUapStarted()
	assert.Equal(t, types.UAPStarted, sm.State())
	assert.Equal(t, types.EvtUapSuccess, (*got)[len(*got)-1].Event)

	sm.HandleAddressConfig()
	assert.Equal(t, types.UAPIPUp, sm.State())

	mac := types.MAC{1, 2, 3, 4, 5, 6}
	sm.HandleClientAssoc(mac)
	assert.Equal(t, types.EvtUapClientAssoc, (*got)[len(*got)-1].Event)
	assert.Equal(t, mac, (*got)[len(*got)-1].MAC)

	sm.HandleClientDisassoc(mac)
	assert.Equal(t, types.EvtUapClientDisassoc, (*got)[len(*got)-1].Event)

	sm.Stop()
	assert.Equal(t, types.UAPInitializing, sm.State())
	assert.Equal(t, 1, drv.UapStopCalls)
	assert.Equal(t, types.EvtUapStopped, (*got)[len(*got)-1].Event)
	assert.Equal(t, store.None, sm.CurrentNetwork())
}
