package core

const (
	clientCommandBuffer = 16
	clientEventBuffer   = 64
)

// Client is one live connection of an authenticated user.
// A user may hold several clients at once (tabs, devices).
type Client struct {
	ID       string
	UserID   int64
	Commands chan *Command
	Events   chan *Event
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, userID int64) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Commands: make(chan *Command, clientCommandBuffer),
		Events:   make(chan *Event, clientEventBuffer),
	}
}

// Send queues an event for the connection without blocking.
// It returns false when the client is too slow and the event was dropped.
func (c *Client) Send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
