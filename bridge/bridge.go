// Package bridge carries finalized loan notices to cross-chain observers. The
// vault engine hands a fully-formed payload to a Notifier and treats the
// publish result as part of the operation: a failed publish aborts the whole
// ledger transition.
package bridge

import "sync"

// Finality is the durability level requested before a notice counts as sent.
type Finality uint8

const (
	// FinalityConfirmed waits for a single confirmation on the guardian side.
	FinalityConfirmed Finality = iota
	// FinalityFinalized waits for reorganization-proof confirmation. The
	// vault ledger always requests this level.
	FinalityFinalized
)

// String returns the wire label for the finality level.
func (f Finality) String() string {
	switch f {
	case FinalityConfirmed:
		return "confirmed"
	case FinalityFinalized:
		return "finalized"
	}
	return "unknown"
}

// Message is a single outbound cross-chain notice.
type Message struct {
	Nonce    uint32
	Payload  []byte
	Finality Finality
}

// Notifier publishes notices and reports the assigned guardian sequence
// number. Publish must either succeed or fail synchronously so callers can
// treat emission as part of an atomic operation.
type Notifier interface {
	Publish(msg Message) (uint64, error)
}

// Recorder is an in-memory Notifier that captures published messages. It is
// used by tests and by dry-run deployments.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	next     uint64
	fail     error
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith forces subsequent Publish calls to return err. Passing nil restores
// normal recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

// Publish records the message and returns a monotonically increasing sequence.
func (r *Recorder) Publish(msg Message) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	seq := r.next
	r.next++
	copied := msg
	copied.Payload = append([]byte(nil), msg.Payload...)
	r.messages = append(r.messages, copied)
	return seq, nil
}

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
