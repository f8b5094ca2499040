package roam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"wcm/internal/driver/fakedriver"
	"wcm/internal/events"
	"wcm/internal/scan"
	"wcm/internal/types"
	"wcm/internal/wcmerr"
)

func newTestCoordinator(t *testing.T, bssid types.MAC) (*Coordinator, *fakedriver.Fake, *[]struct {
	BSSID   types.MAC
	Channel int
}) {
	c, drv, calls, _ := newTestCoordinatorWithCallback(t, bssid)
	return c, drv, calls
}

func newTestCoordinatorWithCallback(t *testing.T, bssid types.MAC) (*Coordinator, *fakedriver.Fake, *[]struct {
	BSSID   types.MAC
	Channel int
}, *[]types.CallbackEvent) {
	t.Helper()
	bus := events.New(20)
	drv := fakedriver.New(bus)
	sc := scan.New(drv)

	var reassocCalls []struct {
		BSSID   types.MAC
		Channel int
	}
	var cbEvents []types.CallbackEvent
	c := New(Params{
		Driver:   drv,
		ScanCo:   sc,
		Log:      zaptest.NewLogger(t).Sugar(),
		Callback: func(e types.CallbackEvent) { cbEvents = append(cbEvents, e) },
		Reassociate: func(b types.MAC, ch int) {
			reassocCalls = append(reassocCalls, struct {
				BSSID   types.MAC
				Channel int
			}{b, ch})
		},
		CurrentBSSID:          func() types.MAC { return bssid },
		BgScanLimit:           3,
		NeighborReportTimeout: 60 * time.Second,
	})
	return c, drv, &reassocCalls, &cbEvents
}

func TestSoftRoamingTakesPriorityAndConfiguresBgscan(t *testing.T) {
	c, drv, _ := newTestCoordinator(t, types.MAC{1})
	c.SetSoftRoaming(true)

	c.HandleRSSILow("home-ssid", true, true, nil)
	assert.True(t, c.InProgress())
	require.Len(t, drv.ScanCalls, 0)
}

func TestFallsBackTo11kWhenSoftRoamingDisabled(t *testing.T) {
	c, drv, _ := newTestCoordinator(t, types.MAC{1})

	c.HandleRSSILow("home-ssid", true, true, nil)
	assert.True(t, c.InProgress())
	assert.Equal(t, 1, drv.NeighborRequestCalls)
	assert.Equal(t, 0, drv.BTMQueryCalls)
}

func TestFallsBackTo11vWhen11kUnsupported(t *testing.T) {
	c, drv, _ := newTestCoordinator(t, types.MAC{1})

	c.HandleRSSILow("home-ssid", false, true, nil)
	assert.Equal(t, 1, drv.BTMQueryCalls)
}

func TestRearmsThresholdWhenNothingSupported(t *testing.T) {
	c, _, _ := newTestCoordinator(t, types.MAC{1})
	rearmed := false

	c.HandleRSSILow("home-ssid", false, false, func() { rearmed = true })
	assert.False(t, c.InProgress())
	assert.True(t, rearmed)
}

func TestBgScanBestCandidateTriggersReassociate(t *testing.T) {
	c, _, calls := newTestCoordinator(t, types.MAC{1})
	c.SetSoftRoaming(true)
	c.HandleRSSILow("home-ssid", false, false, nil)

	found, exhausted := c.HandleBgScanResult([]Candidate{{BSSID: types.MAC{9}, Channel: 6}})
	assert.True(t, found)
	assert.False(t, exhausted)
	require.Len(t, *calls, 1)
	assert.Equal(t, types.MAC{9}, (*calls)[0].BSSID)
	assert.False(t, c.InProgress())
}

func TestBgScanExhaustsAfterLimit(t *testing.T) {
	c, _, _ := newTestCoordinator(t, types.MAC{1})
	c.SetSoftRoaming(true)
	c.HandleRSSILow("home-ssid", false, false, nil)

	var exhausted bool
	for i := 0; i < 4; i++ {
		_, exhausted = c.HandleBgScanResult(nil)
		if exhausted {
			break
		}
	}
	assert.True(t, exhausted)
	assert.False(t, c.InProgress())
}

func TestBgScanExhaustionPublishesNetworkNotFound(t *testing.T) {
	c, _, _, cbEvents := newTestCoordinatorWithCallback(t, types.MAC{1})
	c.SetSoftRoaming(true)
	c.HandleRSSILow("home-ssid", false, false, nil)

	var exhausted bool
	for i := 0; i < 4; i++ {
		_, exhausted = c.HandleBgScanResult(nil)
		if exhausted {
			break
		}
	}
	require.True(t, exhausted)
	require.NotEmpty(t, *cbEvents)
	assert.Equal(t, types.EvtBgscanNetworkNotFound, (*cbEvents)[len(*cbEvents)-1].Event)
}

func TestNeighborReportRejectsWhenBestIsCurrentBSSID(t *testing.T) {
	current := types.MAC{5}
	c, drv, calls := newTestCoordinator(t, current)
	c.HandleRSSILow("home-ssid", true, false, nil)

	req := c.HandleNeighborReport([]Candidate{{BSSID: current, Channel: 1}, {BSSID: types.MAC{6}, Channel: 6}})
	assert.True(t, req.Directed)
	assert.Equal(t, []int{1, 6}, req.Channels)

	c.HandleNeighborScanComplete()
	assert.Equal(t, 1, drv.BTMRejectCalls)
	assert.Empty(t, *calls)
}

func TestNeighborReportViaBTMSendsResponse(t *testing.T) {
	c, drv, _ := newTestCoordinator(t, types.MAC{1})
	c.HandleRSSILow("home-ssid", false, true, nil)

	c.HandleNeighborReport([]Candidate{{BSSID: types.MAC{9}, Channel: 6}})
	c.HandleNeighborScanComplete()
	require.Len(t, drv.BTMResponseCalls, 1)
	assert.Equal(t, types.MAC{9}, drv.BTMResponseCalls[0])
}

func TestNeighborReportViaFTInitiatesFTWhenCapable(t *testing.T) {
	c, _, _ := newTestCoordinator(t, types.MAC{1})
	c.SetFTCapable(true)
	var ftCalls []types.MAC
	c.ftRoam = func(b types.MAC, ch int) { ftCalls = append(ftCalls, b) }

	c.HandleRSSILow("home-ssid", true, false, nil)
	c.HandleNeighborReport([]Candidate{{BSSID: types.MAC{9}, Channel: 6}})
	c.HandleNeighborScanComplete()
	require.Len(t, ftCalls, 1)
	assert.Equal(t, types.MAC{9}, ftCalls[0])
}

// TestFTRoamRejectsWhenNotCapable guards against a scan-lock leak: the
// public API takes the scan lock before enqueueing an ft_roam request, and
// relies on a non-nil error here to release it when the attempt is a
// no-op (spec §4.9: "only meaningful if the current security is
// FT-capable").
func TestFTRoamRejectsWhenNotCapable(t *testing.T) {
	c, drv, _ := newTestCoordinator(t, types.MAC{1})

	err := c.FTRoam(types.MAC{9}, 6)
	require.Error(t, err)
	assert.ErrorIs(t, err, wcmerr.ErrNotSupported)
	assert.Empty(t, drv.ScanCalls)
}
