package testutil

import (
	"sync"

	"github.com/mediaprov/provenance-services/signer"
)

// RecordedCall is one callback invocation seen by a RecordingSigner.
type RecordedCall struct {
	Op      string
	Payload []byte
}

// RecordingSigner wraps a signing callback and records every call
// made through it. Tests run concurrent sign requests with distinct
// recording signers to prove nested callback calls stay routed to the
// request they belong to. A RecordingSigner always exposes the
// timestamp capability; when the inner callback lacks it, Timestamp
// records the call and returns no token.
type RecordingSigner struct {
	Inner signer.SigningCallback

	mutex sync.Mutex
	calls []RecordedCall
}

func NewRecordingSigner(inner signer.SigningCallback) *RecordingSigner {
	return &RecordingSigner{
		Inner: inner,
		calls: make([]RecordedCall, 0),
	}
}

// Calls returns a copy of the recorded calls in order.
func (rs *RecordingSigner) Calls() []RecordedCall {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()
	calls := make([]RecordedCall, len(rs.calls))
	copy(calls, rs.calls)
	return calls
}

// Ops returns just the operation names of the recorded calls.
func (rs *RecordingSigner) Ops() []string {
	calls := rs.Calls()
	ops := make([]string, len(calls))
	for i, call := range calls {
		ops[i] = call.Op
	}
	return ops
}

func (rs *RecordingSigner) record(op string, payload []byte) {
	rs.mutex.Lock()
	rs.calls = append(rs.calls, RecordedCall{Op: op, Payload: payload})
	rs.mutex.Unlock()
}

func (rs *RecordingSigner) Digest(data []byte) ([]byte, error) {
	rs.record("digest", data)
	return rs.Inner.Digest(data)
}

func (rs *RecordingSigner) Sign(data []byte) ([]byte, error) {
	rs.record("sign", data)
	return rs.Inner.Sign(data)
}

func (rs *RecordingSigner) Random(n int) ([]byte, error) {
	rs.record("random", nil)
	return rs.Inner.Random(n)
}

func (rs *RecordingSigner) Timestamp(message []byte) ([]byte, error) {
	rs.record("timestamp", message)
	if ts, ok := signer.HasTimestamp(rs.Inner); ok {
		return ts.Timestamp(message)
	}
	return nil, nil
}
