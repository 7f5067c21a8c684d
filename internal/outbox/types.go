package outbox

// Event is the caller-facing shape passed to Enqueue: the producer already
// knows the event id (so retries of the producing operation are safe) and
// the event type tag used by consumers for dispatch/routing.
type Event struct {
	ID        string
	EventType string
	Payload   []byte
}

// Row is the post-claim projection returned by ClaimBatch.
type Row struct {
	ID        string
	EventType string
	Payload   []byte
	Status    string
	Attempts  int
}
