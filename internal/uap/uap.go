// Package uap implements the µAP State Machine (spec §4.6): profile
// configure -> firmware start -> address-up, plus client assoc/deauth
// event forwarding.
package uap

import (
	"sort"

	"go.uber.org/zap"

	"wcm/internal/driver"
	"wcm/internal/metrics"
	"wcm/internal/store"
	"wcm/internal/types"
)

// Callback is the upward event publisher (spec §6).
type Callback func(types.CallbackEvent)

// STAChannel reports the STA's current channel and whether it is in a
// state (Associated/Connected) the µAP may inherit from (spec §4.6
// "inherit the STA's channel if STA is Associated/Connected").
type STAChannel func() (channel int, ok bool)

// AllowedChannels reports the regulatory-allowed channel set the µAP may
// pick from when computing an ACS list (spec §4.6).
type AllowedChannels func() []int

// SM is the µAP state machine, driven exclusively by the control task.
type SM struct {
	drv        driver.Driver
	store      *store.Store
	cb         Callback
	metrics    *metrics.Metrics
	slog       *zap.SugaredLogger
	staChannel STAChannel
	allowed    AllowedChannels

	state      types.UAPState
	networkIdx int
	channel    int
}

// Params bundles the collaborators an SM needs.
type Params struct {
	Driver     driver.Driver
	Store      *store.Store
	Callback   Callback
	Metrics    *metrics.Metrics
	Log        *zap.SugaredLogger
	STAChannel STAChannel
	Allowed    AllowedChannels
}

// New returns an SM in the Initializing state.
func New(p Params) *SM {
	return &SM{
		drv:        p.Driver,
		store:      p.Store,
		cb:         p.Callback,
		metrics:    p.Metrics,
		slog:       p.Log,
		staChannel: p.STAChannel,
		allowed:    p.Allowed,
		state:      types.UAPInitializing,
		networkIdx: store.None,
	}
}

// State returns the current µAP connection state (spec §6
// get_uap_connection_state).
func (s *SM) State() types.UAPState { return s.state }

// CurrentNetwork returns the current µAP profile index, or store.None.
func (s *SM) CurrentNetwork() int { return s.networkIdx }

// CurrentChannel returns the channel the µAP started on.
func (s *SM) CurrentChannel() int { return s.channel }

func (s *SM) publish(ev types.UserEvent, reason string) {
	s.cb(types.CallbackEvent{Event: ev, Reason: reason})
}

func (s *SM) transition(to types.UAPState) {
	s.slog.Debugf("uap: %s -> %s", s.state, to)
	s.state = to
	if s.metrics != nil {
		s.metrics.UAPState.Set(float64(to))
	}
}

// acsChannels returns the allowed channel set, sorted ascending, for a
// simple deterministic auto-channel-selection (spec §4.6: "compute an ACS
// channel list from the allowed set").
func acsChannels(allowed []int) []int {
	out := make([]int, len(allowed))
	copy(out, allowed)
	sort.Ints(out)
	return out
}

// Start runs do_start for the profile at idx (spec §4.6).
func (s *SM) Start(idx int) {
	p, err := s.store.GetByIndex(idx)
	if err != nil {
		s.publish(types.EvtUapStartFailed, "profile not found")
		return
	}
	if p.Role != types.RoleUAP {
		s.publish(types.EvtUapStartFailed, "profile is not a µAP profile")
		return
	}

	channel := p.Channel
	if !p.ChannelSpecific {
		if ch, ok := s.staChannelOrZero(); ok {
			channel = ch
		} else {
			list := acsChannels(s.allowedOrEmpty())
			if len(list) == 0 {
				s.publish(types.EvtUapStartFailed, "no allowed channel for ACS")
				return
			}
			channel = list[0]
		}
	} else if s.allowed != nil {
		if !contains(s.allowedOrEmpty(), p.Channel) {
			s.publish(types.EvtUapStartFailed, "constrained channel not in allowed set")
			return
		}
	}

	req := driver.UapStartFields{Profile: p, Channel: channel}
	if err := s.drv.UapStart(req); err != nil {
		s.slog.Warnf("uap: start command failed: %v", err)
		s.publish(types.EvtUapStartFailed, "start command failed")
		return
	}

	s.networkIdx = idx
	s.store.SetCurrentUAP(idx)
	s.channel = channel
	s.transition(types.UAPConfigured)
}

func (s *SM) staChannelOrZero() (int, bool) {
	if s.staChannel == nil {
		return 0, false
	}
	return s.staChannel()
}

func (s *SM) allowedOrEmpty() []int {
	if s.allowed == nil {
		return nil
	}
	return s.allowed()
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// HandleUapStarted processes the firmware's UapStarted ack
// (spec §4.6: Configured -> Started).
func (s *SM) HandleUapStarted() {
	if s.state != types.UAPConfigured {
		s.slog.Debugf("uap: ignoring UapStarted in state %s", s.state)
		return
	}
	s.publish(types.EvtUapSuccess, "")
	s.transition(types.UAPStarted)
}

// HandleAddressConfig processes address-configuration completion on the
// µAP interface (spec §4.6: Started -> IpUp).
func (s *SM) HandleAddressConfig() {
	if s.state != types.UAPStarted {
		s.slog.Debugf("uap: ignoring address config in state %s", s.state)
		return
	}
	s.transition(types.UAPIPUp)
}

// Stop handles a user stop from any state (spec §4.6: "any state ->
// Initializing on user stop").
func (s *SM) Stop() {
	if s.state == types.UAPInitializing {
		return
	}
	if err := s.drv.UapStop(); err != nil {
		s.slog.Warnf("uap: stop command failed: %v", err)
		s.publish(types.EvtUapStopFailed, "stop command failed")
		return
	}
	s.publish(types.EvtUapStopped, "")
	s.networkIdx = store.None
	s.store.SetCurrentUAP(store.None)
	s.channel = 0
	s.transition(types.UAPInitializing)
}

// HandleClientAssoc forwards a client-association event to the user
// callback (spec §4.6). It issues no driver command and does not set the
// "sticky TIM" bit.
func (s *SM) HandleClientAssoc(mac types.MAC) {
	if s.metrics != nil {
		s.metrics.UapClientAssoc.Inc()
	}
	s.cb(types.CallbackEvent{Event: types.EvtUapClientAssoc, MAC: mac})
	// The sticky-TIM bit itself is a firmware-side flag set as part of
	// the assoc command ack path; nothing further is owned by this SM.
}

// HandleClientDisassoc forwards a client-disassociation event.
func (s *SM) HandleClientDisassoc(mac types.MAC) {
	if s.metrics != nil {
		s.metrics.UapClientDisassoc.Inc()
	}
	s.cb(types.CallbackEvent{Event: types.EvtUapClientDisassoc, MAC: mac})
}
