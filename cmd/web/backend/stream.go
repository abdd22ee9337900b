package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"civicf7/bridge"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// OutcomeStreamer drains the outcome queue and fans each outcome out to the
// connected event-stream clients.
type OutcomeStreamer struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
}

func NewOutcomeStreamer() *OutcomeStreamer {
	return &OutcomeStreamer{
		subscribers: make(map[chan []byte]struct{}),
	}
}

func (s *OutcomeStreamer) Start(ctx context.Context, logger zerolog.Logger, queue bridge.OutcomeQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			pollCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			outcome, err := queue.Pull(pollCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error().Err(err).Msg("failed to pull relay outcome")
				time.Sleep(200 * time.Millisecond)
				continue
			}
			if outcome == nil {
				time.Sleep(200 * time.Millisecond)
				continue
			}

			data, err := json.Marshal(outcome)
			if err != nil {
				logger.Error().Err(err).Msg("failed to marshal relay outcome")
				continue
			}

			s.broadcast(data)
		}
	}
}

func (s *OutcomeStreamer) StreamFiber(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	msgCh := s.subscribe()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer s.unsubscribe(msgCh)

		keepAlive := time.NewTicker(20 * time.Second)
		defer keepAlive.Stop()

		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				if err := writeEvent(w, "relay_outcome", msg); err != nil {
					return
				}
			case <-keepAlive.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func writeEvent(w *bufio.Writer, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}

func (s *OutcomeStreamer) subscribe() chan []byte {
	ch := make(chan []byte, 32)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *OutcomeStreamer) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	close(ch)
	s.mu.Unlock()
}

// broadcast drops the message for subscribers whose buffer is full.
func (s *OutcomeStreamer) broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}
