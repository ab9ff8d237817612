// Package publisher defines the event publishing interface for completed
// crawl runs.
package publisher

import "context"

// Publisher sends a payload to a named topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
