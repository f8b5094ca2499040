// Package powersave implements the IEEE-PS and deep-sleep-PS sub-state
// machines (spec §4.7). Both share the same state shape and transition
// logic; SM is parameterized by types.PSMode so one implementation drives
// both.
package powersave

import (
	"wcm/internal/driver"
	"wcm/internal/types"
)

// Callback is the upward event publisher (spec §6).
type Callback func(types.CallbackEvent)

// Gate reports whether this sub-machine is currently allowed to run:
// IEEE-PS only while the STA is Connected; deep-sleep-PS only while
// disconnected (spec §4.7).
type Gate func() bool

// AddressSource returns the current IPv4 address to carry in the
// host-sleep configuration, and which interface it belongs to.
type AddressSource func() (iface driver.Iface, ipv4 [4]byte, ok bool)

// SM is one power-save sub-state-machine.
type SM struct {
	mode  types.PSMode
	drv   driver.Driver
	cb    Callback
	gate  Gate
	addr  AddressSource
	conditions driver.WakeConditions

	state         types.PSState
	reqSlpConfirm bool

	// skipFirstExit implements skip_ds_exit_cb (spec §4.7): the very
	// first PS_EXIT after construction is suppressed, since it would
	// otherwise fire spuriously before initialization settles.
	skipFirstExit bool
}

// Params bundles the collaborators an SM needs.
type Params struct {
	Mode       types.PSMode
	Driver     driver.Driver
	Callback   Callback
	Gate       Gate
	Addr       AddressSource
	Conditions driver.WakeConditions
}

// New returns an SM in Init state. skip_ds_exit_cb (spec §4.7,
// original_source/wlcmgr/wlan.c's wlcm_process_deepsleep_event) is armed
// by default only for the deep-sleep sub-machine: the first PS_EXIT after
// construction is suppressed there. IEEE-PS's own event handler
// (wlcm_process_ieeeps_event) emits PS_EXIT unconditionally, so the IEEE
// sub-machine never arms this suppression.
func New(p Params) *SM {
	return &SM{
		mode:          p.Mode,
		drv:           p.Driver,
		cb:            p.Callback,
		gate:          p.Gate,
		addr:          p.Addr,
		conditions:    p.Conditions,
		state:         types.PSInit,
		skipFirstExit: p.Mode == types.PSModeDeepSleep,
	}
}

// State returns the current power-save sub-state.
func (s *SM) State() types.PSState { return s.state }

// SetConditions updates the wake-on-X bitmap sent with the next host-sleep
// config this sub-machine issues (spec §6 ieeeps_on/deepsleepps_on take a
// wakeup_conditions argument).
func (s *SM) SetConditions(c driver.WakeConditions) { s.conditions = c }

func (s *SM) publish(ev types.UserEvent) {
	s.cb(types.CallbackEvent{Event: ev, PSMode: s.mode})
}

// Enable drives {Enable, EnableDone} (spec §4.7: "Init --Enable/EnableDone--> Configuring").
func (s *SM) Enable() error {
	if s.state != types.PSInit {
		return nil
	}
	var err error
	if s.mode == types.PSModeDeepSleep {
		err = s.drv.EnterDeepSleepPowerSave()
	} else {
		err = s.drv.EnterIEEEPowerSave()
	}
	if err != nil {
		return err
	}
	s.state = types.PSConfiguring
	return nil
}

// Awake processes a firmware Awake event.
func (s *SM) Awake() {
	switch s.state {
	case types.PSConfiguring, types.PSSleep:
		s.leaveSleep()
		s.state = types.PSAwake
	default:
	}
}

// leaveSleep emits PS_EXIT when the sub-machine is currently in Sleep,
// subject to the first-exit suppression (spec §4.7: "Emits ... PS_EXIT
// on crossing Sleep boundaries ... the skip_ds_exit_cb flag").
func (s *SM) leaveSleep() {
	if s.state != types.PSSleep {
		return
	}
	if s.skipFirstExit {
		s.skipFirstExit = false
		return
	}
	s.publish(types.EvtPSExit)
}

// Sleep processes a firmware Sleep event, entering PreSleep and attempting
// the sleep-confirm handshake (spec §4.7).
func (s *SM) Sleep() {
	switch s.state {
	case types.PSConfiguring, types.PSAwake, types.PSSleep:
		s.state = types.PSPreSleep
		s.attemptSleepConfirm()
	default:
	}
}

// attemptSleepConfirm implements the sleep-confirm gating: if the driver
// reports an in-flight transfer, set req_sl_confirm and return (the
// control task's timed dequeue retries); otherwise send the host-sleep
// config and a sleep-confirm command (spec §4.7).
func (s *SM) attemptSleepConfirm() {
	if s.drv.HasInFlightTransfer() {
		s.reqSlpConfirm = true
		return
	}
	s.reqSlpConfirm = false

	iface, ipv4, ok := s.addrOrZero()
	if ok {
		_ = s.drv.SendHostSleepCfg(iface, ipv4, driver.HostSleepActivate, s.conditions)
	}
	_ = s.drv.SendSleepConfirm(iface)
}

func (s *SM) addrOrZero() (driver.Iface, [4]byte, bool) {
	if s.addr == nil {
		return driver.IfaceSTA, [4]byte{}, false
	}
	return s.addr()
}

// RetrySleepConfirm is invoked by the control task's conditional-timeout
// dequeue while req_sl_confirm is pending (spec §4.1, §4.7).
func (s *SM) RetrySleepConfirm() {
	if s.state != types.PSPreSleep || !s.reqSlpConfirm {
		return
	}
	s.attemptSleepConfirm()
}

// SleepConfirmPending reports whether a retry is owed, gating the control
// task's short-timeout dequeue branch.
func (s *SM) SleepConfirmPending() bool {
	return s.state == types.PSPreSleep && s.reqSlpConfirm
}

// SlpCfm processes the firmware's sleep-confirm ack (spec §4.7:
// "PreSleep --SlpCfm--> Sleep").
func (s *SM) SlpCfm() {
	if s.state != types.PSPreSleep {
		return
	}
	s.reqSlpConfirm = false
	s.state = types.PSSleep
	s.publish(types.EvtPSEnter)
}

// Disable drives {Disable, DisableDone} (spec §4.7).
func (s *SM) Disable() error {
	switch s.state {
	case types.PSPreSleep:
		// Cancel any pending confirm retry.
		s.reqSlpConfirm = false
		s.state = types.PSDisabling
	case types.PSSleep:
		s.leaveSleep()
		s.state = types.PSPreDisable
	case types.PSConfiguring, types.PSAwake:
		s.state = types.PSDisabling
	default:
		return nil
	}

	if s.state == types.PSPreDisable {
		return nil
	}
	return s.doDisable()
}

// Enter processes the {Enter} event that advances PreDisable -> Disabling
// (spec §4.7: "PreDisable --Enter--> Disabling").
func (s *SM) Enter() error {
	if s.state != types.PSPreDisable {
		return nil
	}
	s.state = types.PSDisabling
	return s.doDisable()
}

func (s *SM) doDisable() error {
	var err error
	if s.mode == types.PSModeDeepSleep {
		err = s.drv.ExitDeepSleepPowerSave()
	} else {
		err = s.drv.ExitIEEEPowerSave()
	}
	return err
}

// DisableDone processes the firmware's DisableDone ack, returning to Init
// (spec §4.7: "Disabling --DisableDone--> Init").
func (s *SM) DisableDone() {
	if s.state != types.PSDisabling {
		return
	}
	s.state = types.PSInit
}

// Allowed reports whether this sub-machine's gate currently permits
// running (spec §4.7: IEEE-PS only while Connected, deep-sleep-PS only
// while disconnected).
func (s *SM) Allowed() bool {
	if s.gate == nil {
		return true
	}
	return s.gate()
}
