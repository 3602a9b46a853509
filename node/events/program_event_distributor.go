package events

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Silent-Builder-x/ArcDNA/node/program"
	"github.com/Silent-Builder-x/ArcDNA/types/events"
	"github.com/Silent-Builder-x/ArcDNA/types/network"
)

const (
	subscriberBuffer = 100
	resubscribeDelay = time.Second
)

// ProgramEventDistributor follows the log stream of one program and fans
// each notification out to every subscriber.
type ProgramEventDistributor struct {
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	chain       network.ChainClient
	programID   solana.PublicKey
	logger      *zap.Logger
	sub         network.LogSubscription
	subscribers map[string]chan events.ProgramEvent
	running     bool
	wg          sync.WaitGroup
}

var _ events.EventDistributor = (*ProgramEventDistributor)(nil)

func NewProgramEventDistributor(
	chain network.ChainClient,
	programID solana.PublicKey,
	logger *zap.Logger,
) *ProgramEventDistributor {
	return &ProgramEventDistributor{
		chain:       chain,
		programID:   programID,
		logger:      logger.Named("event_distributor"),
		subscribers: make(map[string]chan events.ProgramEvent),
	}
}

// Start opens the log subscription and begins the processing loop.
func (d *ProgramEventDistributor) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	sub, err := d.chain.SubscribeLogs(ctx, d.programID)
	if err != nil {
		return errors.Wrap(err, "start")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.sub = sub
	d.running = true

	distributorStartsTotal.Inc()

	d.wg.Add(1)
	go d.processEvents()

	return nil
}

// Stop gracefully shuts down the distributor and closes every subscriber
// channel.
func (d *ProgramEventDistributor) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()

	d.mu.Lock()
	if d.sub != nil {
		d.sub.Unsubscribe()
		d.sub = nil
	}
	for _, ch := range d.subscribers {
		close(ch)
	}
	d.subscribers = make(map[string]chan events.ProgramEvent)
	subscribersCount.Set(0)
	d.mu.Unlock()

	distributorStopsTotal.Inc()

	return nil
}

// Subscribe registers a new subscriber. Events observed before the call are
// not replayed.
func (d *ProgramEventDistributor) Subscribe(
	id string,
) <-chan events.ProgramEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan events.ProgramEvent, subscriberBuffer)
	if old, exists := d.subscribers[id]; exists {
		close(old)
	}
	d.subscribers[id] = ch

	subscriptionsTotal.Inc()
	subscribersCount.Set(float64(len(d.subscribers)))

	return ch
}

// Unsubscribe removes a subscriber
func (d *ProgramEventDistributor) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ch, exists := d.subscribers[id]; exists {
		delete(d.subscribers, id)
		close(ch)

		unsubscriptionsTotal.Inc()
		subscribersCount.Set(float64(len(d.subscribers)))
	}
}

func (d *ProgramEventDistributor) currentSub() network.LogSubscription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sub
}

// processEvents is the main event processing loop
func (d *ProgramEventDistributor) processEvents() {
	defer d.wg.Done()

	for {
		log, err := d.currentSub().Recv(d.ctx)
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}

			d.logger.Warn("log subscription failed", zap.Error(err))
			if !d.resubscribe() {
				return
			}
			continue
		}

		timer := prometheus.NewTimer(eventProcessingDuration)

		event := events.ProgramEvent{
			Type:      events.ProgramEventEmitted,
			Signature: log.Signature,
			Slot:      log.Slot,
			Payloads:  program.EventPayloads(log.Logs),
			Err:       log.Err,
		}
		if log.Failed() {
			event.Type = events.ProgramEventFailed
		}

		eventsProcessedTotal.WithLabelValues(event.Type.String()).Inc()

		d.broadcast(event)

		timer.ObserveDuration()
	}
}

// resubscribe replaces a broken subscription, waiting between attempts until
// the distributor stops.
func (d *ProgramEventDistributor) resubscribe() bool {
	for {
		select {
		case <-d.ctx.Done():
			return false
		case <-time.After(resubscribeDelay):
		}

		sub, err := d.chain.SubscribeLogs(d.ctx, d.programID)
		if err != nil {
			d.logger.Warn("resubscribe failed", zap.Error(err))
			continue
		}

		d.mu.Lock()
		if d.sub != nil {
			d.sub.Unsubscribe()
		}
		d.sub = sub
		d.mu.Unlock()

		resubscribesTotal.Inc()
		d.logger.Info("log subscription re-established")
		return true
	}
}

// broadcast sends an event to all subscribers. A subscriber whose buffer is
// full misses the event rather than stalling the stream.
func (d *ProgramEventDistributor) broadcast(event events.ProgramEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for id, ch := range d.subscribers {
		select {
		case ch <- event:
		default:
			droppedEventsTotal.Inc()
			d.logger.Warn(
				"subscriber buffer full, dropping event",
				zap.String("subscriber", id),
				zap.String("signature", event.Signature.String()),
			)
		}
	}
}
