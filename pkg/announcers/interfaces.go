package announcers

import "context"

// Announcer notifies a downstream sink (HTTP webhook, SQS, etc) that an
// episode was published.
type Announcer interface {
	ID() string
	Type() string
	Announce(ctx context.Context, evt Event) error
}
