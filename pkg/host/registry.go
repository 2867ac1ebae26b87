package host

import (
	"sort"
	"sync"
	"time"

	"github.com/roomlink-project/roomlink-go/pkg/transport"
)

// Registry tracks the remotes that have joined this host's room.
// It keeps presence state across reconnects and manages callbacks
// for arrivals and departures.
type Registry struct {
	mu sync.RWMutex

	// remotes holds all known remotes keyed by peer ID.
	remotes map[string]*Remote

	// callbacks for remote events.
	onRemoteSeen func(remote *Remote)
	onRemoteGone func(peerID string)
}

// Remote describes one remote known to the host.
type Remote struct {
	// ID is the unique peer identifier.
	ID string

	// Kind is the peer kind.
	Kind transport.PeerKind

	// Present indicates the remote is currently in the room.
	Present bool

	// FirstSeen is when the remote first joined.
	FirstSeen time.Time

	// LastSeen is when the remote was last present.
	LastSeen time.Time
}

// NewRegistry creates a new remote registry.
func NewRegistry() *Registry {
	return &Registry{
		remotes: make(map[string]*Remote),
	}
}

// MarkPresent records a remote as present in the room. New remotes are
// added; known remotes get their presence and last-seen time refreshed.
func (r *Registry) MarkPresent(peer transport.Peer) {
	r.mu.Lock()

	now := time.Now()
	remote, exists := r.remotes[peer.ID]
	if !exists {
		remote = &Remote{
			ID:        peer.ID,
			Kind:      peer.Kind,
			FirstSeen: now,
		}
		r.remotes[peer.ID] = remote
	}
	remote.Present = true
	remote.LastSeen = now
	snapshot := *remote
	cb := r.onRemoteSeen
	r.mu.Unlock()

	if cb != nil {
		cb(&snapshot)
	}
}

// MarkAbsent records a remote as having left the room.
// Unknown peer IDs are ignored.
func (r *Registry) MarkAbsent(peerID string) {
	r.mu.Lock()

	remote, exists := r.remotes[peerID]
	if !exists || !remote.Present {
		r.mu.Unlock()
		return
	}
	remote.Present = false
	remote.LastSeen = time.Now()
	cb := r.onRemoteGone
	r.mu.Unlock()

	if cb != nil {
		cb(peerID)
	}
}

// MarkAllAbsent marks every remote as absent. Used when the control
// channel drops and room membership becomes unknown.
func (r *Registry) MarkAllAbsent() {
	r.mu.Lock()

	now := time.Now()
	var gone []string
	for id, remote := range r.remotes {
		if remote.Present {
			remote.Present = false
			remote.LastSeen = now
			gone = append(gone, id)
		}
	}
	cb := r.onRemoteGone
	r.mu.Unlock()

	if cb != nil {
		for _, id := range gone {
			cb(id)
		}
	}
}

// Get returns a remote by peer ID, or nil if unknown.
func (r *Registry) Get(peerID string) *Remote {
	r.mu.RLock()
	defer r.mu.RUnlock()

	remote, exists := r.remotes[peerID]
	if !exists {
		return nil
	}
	c := *remote
	return &c
}

// Has returns true if the remote is known to this host.
func (r *Registry) Has(peerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.remotes[peerID]
	return exists
}

// List returns all known remotes sorted by peer ID.
func (r *Registry) List() []*Remote {
	r.mu.RLock()
	defer r.mu.RUnlock()

	remotes := make([]*Remote, 0, len(r.remotes))
	for _, remote := range r.remotes {
		c := *remote
		remotes = append(remotes, &c)
	}
	sort.Slice(remotes, func(i, j int) bool {
		return remotes[i].ID < remotes[j].ID
	})
	return remotes
}

// Present returns the peer IDs of all remotes currently in the room.
func (r *Registry) Present() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, remote := range r.remotes {
		if remote.Present {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of known remotes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.remotes)
}

// Forget removes a remote from the registry entirely.
func (r *Registry) Forget(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.remotes, peerID)
}

// Records returns persistable records for all known remotes,
// sorted by peer ID.
func (r *Registry) Records() []RemoteRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]RemoteRecord, 0, len(r.remotes))
	for _, remote := range r.remotes {
		records = append(records, RemoteRecord{
			PeerID:      remote.ID,
			Kind:        string(remote.Kind),
			FirstSeenAt: remote.FirstSeen,
			LastSeenAt:  remote.LastSeen,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].PeerID < records[j].PeerID
	})
	return records
}

// Restore seeds the registry from persisted records. Restored remotes
// start absent; presence is re-established by peer events.
func (r *Registry) Restore(records []RemoteRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		if rec.PeerID == "" {
			continue
		}
		if _, exists := r.remotes[rec.PeerID]; exists {
			continue
		}
		r.remotes[rec.PeerID] = &Remote{
			ID:        rec.PeerID,
			Kind:      transport.PeerKind(rec.Kind),
			FirstSeen: rec.FirstSeenAt,
			LastSeen:  rec.LastSeenAt,
		}
	}
}

// OnRemoteSeen sets a callback for when a remote becomes present.
func (r *Registry) OnRemoteSeen(fn func(remote *Remote)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemoteSeen = fn
}

// OnRemoteGone sets a callback for when a remote leaves.
func (r *Registry) OnRemoteGone(fn func(peerID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemoteGone = fn
}
