package bridge

import (
	"sync/atomic"

	"mlesc/internal/domain"
)

type atomicCounter = atomic.Uint64

type counters struct {
	forwardedAB atomicCounter
	forwardedBA atomicCounter
	suppressed  atomicCounter
	dropped     atomicCounter
}

// Snapshot is a copy of the bridge counters and side states.
type Snapshot struct {
	NameA, NameB string

	ForwardedAB uint64
	ForwardedBA uint64
	Suppressed  uint64
	Dropped     uint64

	ReconnectsA uint64
	ReconnectsB uint64
	StateA      domain.LinkState
	StateB      domain.LinkState

	// DecodeFailuresA and DecodeFailuresB count inbound frames each side
	// dropped as undecodable or unauthenticated.
	DecodeFailuresA uint64
	DecodeFailuresB uint64
}

func (s Snapshot) counts() [6]uint64 {
	return [6]uint64{s.ForwardedAB, s.ForwardedBA, s.Suppressed, s.Dropped, s.DecodeFailuresA, s.DecodeFailuresB}
}
