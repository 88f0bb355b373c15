package chat

import (
	"fmt"
	"net"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of concurrent clients a registry admits when none is configured.
const DefaultCapacity = 10

// ClientRecord represents a connected participant.
type ClientRecord struct {
	Conn          net.Conn
	Username      string
	Authenticated bool

	SessionID  uuid.UUID
	RemoteAddr string
}

// RecordID identifies a registry slot. The generation makes ids of removed
// records stale even after their slot is reused.
type RecordID struct {
	index      uint32
	generation uint32
}

func (id RecordID) String() string {
	return fmt.Sprintf("%d.%d", id.index, id.generation)
}

type slot struct {
	generation uint32
	record     *ClientRecord
}

// Registry holds the live client records. It is owned by the event loop and is
// not safe for concurrent use.
type Registry struct {
	capacity int
	slots    []slot
	free     []uint32
	count    int
}

// NewRegistry constructs an empty registry admitting at most capacity records.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		slots:    make([]slot, 0, capacity),
	}
}

// Add registers an unauthenticated record for conn. The caller keeps
// ownership of conn when ErrCapacityExceeded is returned.
func (r *Registry) Add(conn net.Conn) (RecordID, error) {
	if r.count >= r.capacity {
		return RecordID{}, ErrCapacityExceeded
	}

	record := &ClientRecord{
		Conn:      conn,
		SessionID: uuid.New(),
	}
	if conn != nil && conn.RemoteAddr() != nil {
		record.RemoteAddr = conn.RemoteAddr().String()
	}

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		index = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}
	r.slots[index].record = record
	r.count++

	return RecordID{index: index, generation: r.slots[index].generation}, nil
}

// Remove drops the record for id. Removing an unknown or already removed id is a no-op.
// The connection handle is left for the caller to close.
func (r *Registry) Remove(id RecordID) {
	s := r.lookup(id)
	if s == nil {
		return
	}
	s.record = nil
	s.generation++
	r.free = append(r.free, id.index)
	r.count--
}

// Get returns the live record for id.
func (r *Registry) Get(id RecordID) (*ClientRecord, bool) {
	s := r.lookup(id)
	if s == nil {
		return nil, false
	}
	return s.record, true
}

// IDs returns a snapshot of the live ids in slot order.
func (r *Registry) IDs() []RecordID {
	ids := make([]RecordID, 0, r.count)
	for i, s := range r.slots {
		if s.record != nil {
			ids = append(ids, RecordID{index: uint32(i), generation: s.generation})
		}
	}
	return ids
}

// ForEach calls action for every record matching pred. Iteration runs over a
// snapshot, so records removed by an earlier action are skipped.
func (r *Registry) ForEach(pred func(RecordID, *ClientRecord) bool, action func(RecordID, *ClientRecord)) {
	for _, id := range r.IDs() {
		record, ok := r.Get(id)
		if !ok {
			continue
		}
		if pred != nil && !pred(id, record) {
			continue
		}
		action(id, record)
	}
}

// Len reports the number of live records.
func (r *Registry) Len() int {
	return r.count
}

// Cap reports the maximum number of live records.
func (r *Registry) Cap() int {
	return r.capacity
}

func (r *Registry) lookup(id RecordID) *slot {
	if int(id.index) >= len(r.slots) {
		return nil
	}
	s := &r.slots[id.index]
	if s.record == nil || s.generation != id.generation {
		return nil
	}
	return s
}
