package hostsleep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wcm/internal/driver"
	"wcm/internal/driver/fakedriver"
	"wcm/internal/events"
)

func TestSendHostSleepUsesSTAWhenAvailable(t *testing.T) {
	bus := events.New(20)
	drv := fakedriver.New(bus)
	sta := func() (driver.Iface, [4]byte, bool) { return driver.IfaceSTA, [4]byte{10, 0, 0, 1}, true }
	uap := func() (driver.Iface, [4]byte, bool) { return driver.IfaceUAP, [4]byte{192, 168, 1, 1}, true }
	c := New(drv, sta, uap)

	err := c.SendHostSleep(driver.WakeUnicast | driver.WakeMgmtFrame)
	require.NoError(t, err)
	require.Len(t, drv.HostSleepCalls, 1)
	assert.Equal(t, driver.IfaceSTA, drv.HostSleepCalls[0].Iface)
}

func TestSendHostSleepFallsBackToUAP(t *testing.T) {
	bus := events.New(20)
	drv := fakedriver.New(bus)
	sta := func() (driver.Iface, [4]byte, bool) { return 0, [4]byte{}, false }
	uap := func() (driver.Iface, [4]byte, bool) { return driver.IfaceUAP, [4]byte{192, 168, 1, 1}, true }
	c := New(drv, sta, uap)

	err := c.SendHostSleep(driver.WakeBroadcast)
	require.NoError(t, err)
	require.Len(t, drv.HostSleepCalls, 1)
	assert.Equal(t, driver.IfaceUAP, drv.HostSleepCalls[0].Iface)
}

func TestSendHostSleepFailsWithNoAddress(t *testing.T) {
	bus := events.New(20)
	drv := fakedriver.New(bus)
	noAddr := func() (driver.Iface, [4]byte, bool) { return 0, [4]byte{}, false }
	c := New(drv, noAddr, noAddr)

	err := c.SendHostSleep(driver.WakeBroadcast)
	assert.Error(t, err)
	assert.Empty(t, drv.HostSleepCalls)
}

func TestSendHostSleepIdempotentWithSameConditions(t *testing.T) {
	bus := events.New(20)
	drv := fakedriver.New(bus)
	sta := func() (driver.Iface, [4]byte, bool) { return driver.IfaceSTA, [4]byte{10, 0, 0, 1}, true }
	c := New(drv, sta, nil)

	require.NoError(t, c.SendHostSleep(driver.WakeUnicast))
	require.NoError(t, c.SendHostSleep(driver.WakeUnicast))
	assert.Len(t, drv.HostSleepCalls, 1, "identical conditions succeed idempotently without re-sending")
}

func TestSendHostSleepRejectsDifferentConditionsWhileConfigured(t *testing.T) {
	bus := events.New(20)
	drv := fakedriver.New(bus)
	sta := func() (driver.Iface, [4]byte, bool) { return driver.IfaceSTA, [4]byte{10, 0, 0, 1}, true }
	c := New(drv, sta, nil)

	require.NoError(t, c.SendHostSleep(driver.WakeUnicast))
	err := c.SendHostSleep(driver.WakeBroadcast)
	assert.Error(t, err)
}

func TestCancelClearsConfiguredFlag(t *testing.T) {
	bus := events.New(20)
	drv := fakedriver.New(bus)
	sta := func() (driver.Iface, [4]byte, bool) { return driver.IfaceSTA, [4]byte{10, 0, 0, 1}, true }
	c := New(drv, sta, nil)

	require.NoError(t, c.SendHostSleep(driver.WakeUnicast))
	require.NoError(t, c.SendHostSleep(driver.CancelHostSleep))
	_, configured := c.Configured()
	assert.False(t, configured)

	require.NoError(t, c.SendHostSleep(driver.WakeBroadcast), "a fresh condition set succeeds after cancel")
}
