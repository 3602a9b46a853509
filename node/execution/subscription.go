package execution

import (
	"sync"

	"github.com/Silent-Builder-x/ArcDNA/types/computation"
	"github.com/Silent-Builder-x/ArcDNA/types/events"
)

// Subscription is a live listener for program events, opened before the
// queueing transaction is sent so no callback can be missed.
type Subscription struct {
	id          string
	offset      computation.Offset
	events      <-chan events.ProgramEvent
	distributor events.EventDistributor
	closeOnce   sync.Once
}

func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) Offset() computation.Offset {
	return s.offset
}

func (s *Subscription) Events() <-chan events.ProgramEvent {
	return s.events
}

// Close releases the listener. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.distributor.Unsubscribe(s.id)
	})
}
