package ports

import "github.com/lcalzada-xor/auditchain/internal/core/domain"

// Publisher is the write side of the event fan-out. Publish is
// fire-and-forget: it never blocks on, or fails because of, a slow
// subscriber.
type Publisher interface {
	Publish(event domain.Event)
}
