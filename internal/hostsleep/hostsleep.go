// Package hostsleep implements the Host-Sleep Coordinator (spec §4.8): it
// gates send_host_sleep on address availability and enforces the
// idempotent-same-conditions / reject-different-conditions law.
package hostsleep

import (
	"sync"

	"github.com/pkg/errors"

	"wcm/internal/driver"
	"wcm/internal/wcmerr"
)

// AddrSource reports an interface's current IPv4 address and whether it
// is usable for host-sleep configuration: the STA while IPv4-connected,
// else the µAP while started (spec §4.8).
type AddrSource func() (iface driver.Iface, ipv4 [4]byte, ok bool)

// Coordinator owns the single configured-conditions latch. Unlike the STA
// and µAP state machines it is not confined to the control task: the
// public send_host_sleep/cancel_host_sleep APIs call it directly so their
// idempotence law (spec §8) can return synchronously, so its latch is
// guarded by its own mutex rather than the control task's single-writer
// discipline.
type Coordinator struct {
	drv driver.Driver
	sta AddrSource
	uap AddrSource

	mu         sync.Mutex
	configured bool
	conditions driver.WakeConditions
}

// New returns a Coordinator consuming address state from sta and uap, in
// that priority order (spec §4.8: "STA IPv4 connected -> use STA
// interface; else µAP interface if started").
func New(drv driver.Driver, sta, uap AddrSource) *Coordinator {
	return &Coordinator{drv: drv, sta: sta, uap: uap}
}

func (c *Coordinator) pickInterface() (driver.Iface, [4]byte, bool) {
	if c.sta != nil {
		if iface, ipv4, ok := c.sta(); ok {
			return iface, ipv4, true
		}
	}
	if c.uap != nil {
		if iface, ipv4, ok := c.uap(); ok {
			return iface, ipv4, true
		}
	}
	return 0, [4]byte{}, false
}

// SendHostSleep implements send_host_sleep(conditions) (spec §4.8).
func (c *Coordinator) SendHostSleep(conditions driver.WakeConditions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conditions == driver.CancelHostSleep {
		c.configured = false
		c.conditions = 0
		return nil
	}

	if c.configured {
		if conditions == c.conditions {
			return nil
		}
		return errors.Wrap(wcmerr.ErrState, "host-sleep already configured with different conditions")
	}

	iface, ipv4, ok := c.pickInterface()
	if !ok {
		return errors.Wrap(wcmerr.ErrState, "no IPv4 address available on either interface")
	}

	if err := c.drv.SendHostSleepCfg(iface, ipv4, driver.HostSleepConfigure, conditions); err != nil {
		return errors.Wrap(err, "host-sleep configure command failed")
	}
	c.configured = true
	c.conditions = conditions
	return nil
}

// Configured reports whether a host-sleep configuration is currently
// latched, and with which conditions.
func (c *Coordinator) Configured() (driver.WakeConditions, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conditions, c.configured
}
