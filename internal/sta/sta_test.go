package sta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"wcm/internal/config"
	"wcm/internal/driver/fakedriver"
	"wcm/internal/events"
	"wcm/internal/match"
	"wcm/internal/metrics"
	"wcm/internal/scan"
	"wcm/internal/store"
	"wcm/internal/types"
)

func allowAll(int) bool { return true }

func newTestSM(t *testing.T) (*SM, *fakedriver.Fake, *store.Store, *[]types.CallbackEvent) {
	t.Helper()
	bus := events.New(20)
	drv := fakedriver.New(bus)
	st := store.New(5, nil)
	sc := scan.New(drv)
	var got []types.CallbackEvent
	cb := func(e types.CallbackEvent) { got = append(got, e) }

	sm := New(Params{
		Cfg:        config.Default(),
		Driver:     drv,
		Store:      st,
		ScanCo:     sc,
		Bus:        bus,
		Callback:   cb,
		Metrics:    metrics.New(),
		Log:        zaptest.NewLogger(t).Sugar(),
		RegAllowed: match.RegulatoryAllowed(allowAll),
	})
	return sm, drv, st, &got
}

func addProfile(t *testing.T, st *store.Store, name, ssid string) int {
	t.Helper()
	idx, err := st.Add(types.Profile{
		Name: name,
		SSID: ssid,
		Role: types.RoleSTA,
		Security: types.Security{
			Type:       types.SecurityWPA2,
			Passphrase: "supersecret",
		},
		IPv4: types.IPv4Config{Mode: types.AddrDHCP},
	})
	require.NoError(t, err)
	return idx
}

func TestConnectHappyPathDHCP(t *testing.T) {
	sm, drv, st, _ := newTestSM(t)
	idx := addProfile(t, st, "home", "home-ssid")

	sm.Connect(idx, time.Now())
	assert.Equal(t, types.STAScanning, sm.State())
	require.Len(t, drv.ScanCalls, 1)

	entry := types.ScanEntry{
		SSID:         "home-ssid",
		BSSID:        types.MAC{1, 2, 3, 4, 5, 6},
		Channel:      6,
		RSSI:         -40,
		SecurityBits: types.CipherBitWPA2,
	}
	sm.HandleScanResult([]types.ScanEntry{entry})
	assert.Equal(t, types.STAAssociating, sm.State())
	require.Len(t, drv.AssocCalls, 1)
	assert.Equal(t, entry.BSSID, drv.AssocCalls[0].BSSID)

	sm.HandleAssociation(AssociationResult{OK: true})
	assert.Equal(t, types.STAAssociated, sm.State())

	sm.HandleAuthentication(AuthResult{OK: true})
	assert.Equal(t, types.STARequestingAddress, sm.State())

	sm.HandleNetAddrConfig(NetAddrConfigResult{Mode: types.AddrDHCP})
	assert.Equal(t, types.STAObtainingAddress, sm.State())

	sm.HandleDhcpConfig(DhcpResult{OK: true, IPv4: [4]byte{192, 168, 1, 50}})
	assert.Equal(t, types.STAConnected, sm.State())
	assert.False(t, sm.connectWakeLock)
}

func TestConnectStaticAddressSkipsDHCP(t *testing.T) {
	sm, drv, st, _ := newTestSM(t)
	idx, err := st.Add(types.Profile{
		Name: "static-net",
		SSID: "static-ssid",
		Role: types.RoleSTA,
		Security: types.Security{
			Type:       types.SecurityWPA2,
			Passphrase: "supersecret",
		},
		IPv4: types.IPv4Config{Mode: types.AddrStatic, Addr: [4]byte{10, 0, 0, 5}},
	})
	require.NoError(t, err)

	sm.Connect(idx, time.Now())
	entry := types.ScanEntry{
		SSID:         "static-ssid",
		BSSID:        types.MAC{1, 1, 1, 1, 1, 1},
		Channel:      1,
		SecurityBits: types.CipherBitWPA2,
	}
	sm.HandleScanResult([]types.ScanEntry{entry})
	sm.HandleAssociation(AssociationResult{OK: true})
	sm.HandleAuthentication(AuthResult{OK: true})
	assert.Equal(t, types.STARequestingAddress, sm.State())

	sm.HandleNetAddrConfig(NetAddrConfigResult{Mode: types.AddrStatic})
	assert.Equal(t, types.STAConnected, sm.State(), "static address config skips DHCP entirely")
	assert.False(t, drv.ScanCalls[0].Directed)
}

func TestRescanExhaustionReportsNetworkNotFound(t *testing.T) {
	cfg := config.Default()
	cfg.RescanLimit = 2

	bus := events.New(20)
	drv := fakedriver.New(bus)
	st := store.New(5, nil)
	sc := scan.New(drv)
	var got []types.CallbackEvent
	sm := New(Params{
		Cfg:        cfg,
		Driver:     drv,
		Store:      st,
		ScanCo:     sc,
		Bus:        bus,
		Callback:   func(e types.CallbackEvent) { got = append(got, e) },
		Metrics:    metrics.New(),
		Log:        zaptest.NewLogger(t).Sugar(),
		RegAllowed: match.RegulatoryAllowed(allowAll),
	})

	idx := addProfile(t, st, "home", "home-ssid")
	sm.Connect(idx, time.Now())

	for i := 0; i < cfg.RescanLimit+1; i++ {
		sm.HandleScanResult([]types.ScanEntry{})
	}

	assert.Equal(t, types.STAIdle, sm.State())
	require.NotEmpty(t, got)
	assert.Equal(t, types.EvtNetworkNotFound, got[len(got)-1].Event)
}

func TestMICFailureArmsAssocPauseAndLatchesReconnect(t *testing.T) {
	sm, drv, st, got := newTestSM(t)
	idx := addProfile(t, st, "home", "home-ssid")
	sm.Connect(idx, time.Now())
	sm.HandleScanResult([]types.ScanEntry{{
		SSID: "home-ssid", BSSID: types.MAC{9, 9, 9, 9, 9, 9}, Channel: 6,
		SecurityBits: types.CipherBitWPA2,
	}})
	sm.HandleAssociation(AssociationResult{OK: true})
	sm.HandleAuthentication(AuthResult{OK: false, MIC: true})

	assert.Equal(t, types.STAIdle, sm.State())
	require.NotEmpty(t, *got)
	assert.Equal(t, types.EvtNetworkAuthFailed, (*got)[len(*got)-1].Event)
	assert.True(t, sm.assocPause.Armed(time.Now()))

	idx2 := addProfile(t, st, "other", "other-ssid")
	sm.Connect(idx2, time.Now())
	assert.Equal(t, types.STAIdle, sm.State(), "connect during assoc pause is latched, not executed")

	sm.assocPause.Arm(time.Now().Add(-time.Hour))
	assert.False(t, sm.assocPause.Armed(time.Now()))
	pending, ok := sm.assocPause.TakePending()
	require.True(t, ok)
	assert.Equal(t, idx2, pending.NetworkIdx)
	_ = drv
}

func TestLinkLossDeauthsAndReturnsIdle(t *testing.T) {
	sm, drv, st, got := newTestSM(t)
	idx := addProfile(t, st, "home", "home-ssid")
	sm.Connect(idx, time.Now())
	bss := types.MAC{1, 2, 3, 4, 5, 6}
	sm.HandleScanResult([]types.ScanEntry{{SSID: "home-ssid", BSSID: bss, Channel: 6, SecurityBits: types.CipherBitWPA2}})
	sm.HandleAssociation(AssociationResult{OK: true})
	sm.HandleAuthentication(AuthResult{OK: true})
	sm.HandleNetAddrConfig(NetAddrConfigResult{Mode: types.AddrDHCP})
	sm.HandleDhcpConfig(DhcpResult{OK: true})
	require.Equal(t, types.STAConnected, sm.State())

	sm.HandleLinkLoss()
	assert.Equal(t, types.STAIdle, sm.State())
	require.NotEmpty(t, drv.DeauthCalls)
	assert.Equal(t, bss, drv.DeauthCalls[0])
	assert.Equal(t, types.EvtLinkLost, (*got)[len(*got)-1].Event)
}

func TestChanSwitchAnnECSAAwareStaysConnected(t *testing.T) {
	sm, _, st, _ := newTestSM(t)
	idx := addProfile(t, st, "home", "home-ssid")
	sm.Connect(idx, time.Now())
	sm.HandleScanResult([]types.ScanEntry{{SSID: "home-ssid", BSSID: types.MAC{1}, Channel: 6, SecurityBits: types.CipherBitWPA2}})
	sm.HandleAssociation(AssociationResult{OK: true})
	sm.HandleAuthentication(AuthResult{OK: true})
	sm.HandleNetAddrConfig(NetAddrConfigResult{Mode: types.AddrDHCP})
	sm.HandleDhcpConfig(DhcpResult{OK: true})

	sm.HandleChanSwitchAnn(ChanSwitchResult{ECSAAware: true, NewChannel: 44})
	assert.Equal(t, types.STAConnected, sm.State())
	assert.Equal(t, 44, sm.CurrentChannel())
}

func TestChanSwitchAnnNotECSAAwareDisconnects(t *testing.T) {
	sm, drv, st, _ := newTestSM(t)
	idx := addProfile(t, st, "home", "home-ssid")
	sm.Connect(idx, time.Now())
	sm.HandleScanResult([]types.ScanEntry{{SSID: "home-ssid", BSSID: types.MAC{1}, Channel: 6, SecurityBits: types.CipherBitWPA2}})
	sm.HandleAssociation(AssociationResult{OK: true})
	sm.HandleAuthentication(AuthResult{OK: true})
	sm.HandleNetAddrConfig(NetAddrConfigResult{Mode: types.AddrDHCP})
	sm.HandleDhcpConfig(DhcpResult{OK: true})

	sm.HandleChanSwitchAnn(ChanSwitchResult{ECSAAware: false})
	assert.Equal(t, types.STAIdle, sm.State())
	require.NotEmpty(t, drv.DeauthCalls)
}

func TestUserDisconnectFromAssociating(t *testing.T) {
	sm, drv, st, got := newTestSM(t)
	idx := addProfile(t, st, "home", "home-ssid")
	sm.Connect(idx, time.Now())
	sm.HandleScanResult([]types.ScanEntry{{SSID: "home-ssid", BSSID: types.MAC{7}, Channel: 6, SecurityBits: types.CipherBitWPA2}})
	require.Equal(t, types.STAAssociating, sm.State())

	sm.Disconnect()
	assert.Equal(t, types.STAIdle, sm.State())
	assert.Equal(t, types.EvtUserDisconnect, (*got)[len(*got)-1].Event)
	require.NotEmpty(t, drv.DeauthCalls)
}

func TestDHCPFailureNonFatalWhenIPv6Up(t *testing.T) {
	sm, _, st, got := newTestSM(t)
	idx := addProfile(t, st, "home", "home-ssid")
	sm.SetIPv6Connected(true)
	sm.Connect(idx, time.Now())
	sm.HandleScanResult([]types.ScanEntry{{SSID: "home-ssid", BSSID: types.MAC{7}, Channel: 6, SecurityBits: types.CipherBitWPA2}})
	sm.HandleAssociation(AssociationResult{OK: true})
	sm.HandleAuthentication(AuthResult{OK: true})
	sm.HandleNetAddrConfig(NetAddrConfigResult{Mode: types.AddrDHCP})

	sm.HandleDhcpConfig(DhcpResult{OK: false})
	assert.Equal(t, types.STAObtainingAddress, sm.State(), "stays up; core doesn't force a teardown when IPv6 already connected")
	for _, e := range *got {
		assert.NotEqual(t, types.EvtAddressFailed, e.Event)
	}
}
