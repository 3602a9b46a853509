package events

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

type ProgramEventType int

const (
	// ProgramEventEmitted indicates a successful transaction that mentioned
	// the program
	ProgramEventEmitted ProgramEventType = iota
	// ProgramEventFailed indicates a failed transaction that mentioned the
	// program
	ProgramEventFailed
)

func (t ProgramEventType) String() string {
	switch t {
	case ProgramEventEmitted:
		return "emitted"
	case ProgramEventFailed:
		return "failed"
	}
	return "unknown"
}

// ProgramEvent is one transaction observed in the program's log stream.
type ProgramEvent struct {
	Type      ProgramEventType
	Signature solana.Signature
	Slot      uint64
	// Payloads holds every anchor event record emitted by the transaction,
	// discriminator included.
	Payloads [][]byte
	Err      any
}

// EventDistributor fans program events out to any number of subscribers.
type EventDistributor interface {
	Start(ctx context.Context) error
	Stop() error
	Subscribe(id string) <-chan ProgramEvent
	Unsubscribe(id string)
}
