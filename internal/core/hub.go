package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nortonjulian/chatforia-signal/internal/metrics"
)

// Hub tracks live connections and feeds their commands to the relay.
type Hub interface {
	Run(ctx context.Context)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

type hub struct {
	relay    *Relay
	registry *Registry
	log      *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	wg sync.WaitGroup
}

// NewHub creates a hub dispatching to relay and tracking clients in registry.
func NewHub(relay *Relay, registry *Registry, logger *zerolog.Logger) Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &hub{
		relay:      relay,
		registry:   registry,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled, then waits for
// in-flight commands to finish.
func (h *hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.wg.Wait()
	}()

	// Commands already accepted run to completion even after the
	// connection or the hub goes away.
	dispatchCtx := context.WithoutCancel(ctx)

	for {
		select {
		case c := <-h.register:
			if !h.registry.Add(c) {
				continue
			}
			metrics.WSConnections.Inc()
			h.log.Debug().Str("client_id", c.ID).Int64("user_id", c.UserID).Msg("client registered")
			h.wg.Add(1)
			go h.serve(dispatchCtx, c)
		case c := <-h.unregister:
			if !h.registry.Remove(c) {
				continue
			}
			metrics.WSConnections.Dec()
			close(c.Commands)
			h.log.Debug().Str("client_id", c.ID).Int64("user_id", c.UserID).Msg("client unregistered")
		case <-ctx.Done():
			return
		}
	}
}

func (h *hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// serve handles one client's commands in arrival order.
func (h *hub) serve(ctx context.Context, c *Client) {
	defer h.wg.Done()
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			h.relay.Dispatch(ctx, c, cmd)
		case <-h.done:
			return
		}
	}
}
