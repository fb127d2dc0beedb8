package event

import "strconv"

// Subscription is a registered handler for a topic pattern.
type Subscription struct {
	id        string
	pattern   Topic
	handler   Handler
	cancelled bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Topic returns the subscribed topic pattern.
func (s *Subscription) Topic() Topic {
	return s.pattern
}

// IsActive reports whether the subscription still receives events.
func (s *Subscription) IsActive() bool {
	return !s.cancelled
}

// Cancel stops delivery to this subscription. Events already being
// delivered are not interrupted.
func (s *Subscription) Cancel() {
	s.cancelled = true
}

func subscriptionID(n uint64) string {
	return "sub-" + strconv.FormatUint(n, 10)
}
