// Package events implements the bounded event bus of spec §4.1: a single
// FIFO merging user requests, firmware/driver events, IP-stack events, and
// timers, dequeued by one control task. Design note: the source's manual
// "free the payload on every path" discipline for heap-carried messages
// becomes, in Go, a tagged Data field of a concrete payload type per Tag —
// the garbage collector reclaims it uniformly once the handler returns, so
// there is no hand-rolled free path to get wrong.
package events

import (
	"context"
	"time"

	"github.com/satori/uuid"
)

// Tag identifies the class of an event-bus Message.
type Tag int

// Event tags. The control task's dispatch switch (internal/sta, uap,
// powersave, roam) is written against this closed set.
const (
	// User-request events, enqueued by the public API.
	TagUserConnect Tag = iota
	TagUserReassociate
	TagUserDisconnect
	TagUserScan
	TagStartNetwork
	TagStopNetwork
	TagIeeePsOn
	TagIeeePsOff
	TagDeepSleepPsOn
	TagDeepSleepPsOff
	TagSendHostSleep
	TagCancelHostSleep
	TagFTRoam
	TagStop
	TagDeinit

	// Driver/firmware events.
	TagScanResult
	TagScanFailure
	TagAssociation
	TagAuthentication
	TagDeauth
	TagLinkLoss
	TagChanSwitchAnn
	TagUapStarted
	TagUapCmdResult
	TagUapClientAssoc
	TagUapClientDisassoc
	TagUapAddrConfig
	TagRSSILow
	TagNeighborReport
	TagBTMQueryResult
	TagBgScanResult
	TagPSAwake
	TagPSSleep
	TagPSSlpCfm
	TagPSEnableDone
	TagPSDisableDone

	// IP-stack events.
	TagNetAddrConfig
	TagDhcpConfig
	TagLeaseRenewFail

	// Timers, synthesized by the control task or its helpers.
	TagAssocPauseExpired
	TagNeighborReportTimeout
	TagIeeePsSleepTimeout
	TagReconnect
)

// Message is the opaque {event_tag, reason_tag, opaque_data} triple of
// spec §4.1. ID correlates a reply with the command that produced it,
// matching the request/response pairing idiom used for mcp and broker
// handles elsewhere in this codebase.
type Message struct {
	Tag    Tag
	Reason string
	Data   interface{}
	ID     uuid.UUID
}

// NewID returns a fresh correlation ID for a command about to be issued to
// the driver.
func NewID() uuid.UUID {
	return uuid.NewV4()
}

// Bus is the bounded FIFO described in spec §4.1. It is safe for
// concurrent senders; there is exactly one receiver, the control task.
type Bus struct {
	ch chan Message
}

// New allocates a Bus with the given capacity (spec §4.1: "capacity >= 20").
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{ch: make(chan Message, capacity)}
}

// Send enqueues a message, blocking if the bus is full. Public APIs call
// this and return; they never wait for the corresponding reply.
func (b *Bus) Send(msg Message) {
	b.ch <- msg
}

// TrySend enqueues a message without blocking, reporting whether there was
// room. Used by timer-driven producers that would rather drop a tick than
// stall.
func (b *Bus) TrySend(msg Message) bool {
	select {
	case b.ch <- msg:
		return true
	default:
		return false
	}
}

// Recv blocks until a message is available or ctx is done. It is the
// "infinite timeout" branch of the control task's conditional dequeue
// (spec §4.1).
func (b *Bus) Recv(ctx context.Context) (Message, bool) {
	select {
	case m := <-b.ch:
		return m, true
	case <-ctx.Done():
		return Message{}, false
	}
}

// RecvTimeout blocks until a message is available, ctx is done, or d
// elapses. It is the "short fixed timeout" branch used while a
// sleep-confirm retry is pending (spec §4.1): on timeout the caller
// synthesizes an IEEE-PS "sleep" event. timedOut is true only when d
// elapsed with neither a message nor ctx cancellation.
func (b *Bus) RecvTimeout(ctx context.Context, d time.Duration) (msg Message, ok bool, timedOut bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case m := <-b.ch:
		return m, true, false
	case <-ctx.Done():
		return Message{}, false, false
	case <-t.C:
		return Message{}, false, true
	}
}
