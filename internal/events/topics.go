package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderSubmitted = "order.submitted"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderSubmitted,
	}
}
