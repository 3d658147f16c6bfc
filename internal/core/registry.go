package core

import "sync"

// Registry is the exclusive owner of the room membership state: which
// connections belong to which room and which usernames are online there.
// All access goes through a single registry-wide mutex; no operation
// performs I/O while holding it.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*roomState
}

type roomState struct {
	// conns records each registered connection's username so Leave
	// settles the right count.
	conns map[Conn]string
	// users counts live connections per username, so two sessions under
	// the same name keep the user listed until the last one leaves.
	users map[string]int
	// pruned carries connections removed by Prune whose username count
	// is still owed a Leave from their own session.
	pruned map[Conn]string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomState)}
}

// room returns the state for a room, creating it on first reference.
// Rooms are never destroyed; an empty room simply stays around.
// Caller must hold r.mu.
func (r *Registry) room(name string) *roomState {
	st, ok := r.rooms[name]
	if !ok {
		st = &roomState{
			conns:  make(map[Conn]string),
			users:  make(map[string]int),
			pruned: make(map[Conn]string),
		}
		r.rooms[name] = st
	}
	return st
}

// Join registers a connection and its username in a room. Registering an
// already-present connection is a no-op. Returns true if the membership
// actually changed.
func (r *Registry) Join(room string, conn Conn, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.room(room)
	if _, ok := st.conns[conn]; ok {
		return false
	}
	st.conns[conn] = username
	st.users[username]++
	return true
}

// Leave removes a connection and drops one reference to the username
// recorded for it at Join. A connection already removed by Prune still
// settles its username here; a connection that was never registered, or
// that already left, changes nothing. Returns true if anything actually
// changed, so callers can suppress duplicate departure broadcasts.
func (r *Registry) Leave(room string, conn Conn, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[room]
	if !ok {
		return false
	}

	name, registered := st.conns[conn]
	if registered {
		delete(st.conns, conn)
	} else {
		name, ok = st.pruned[conn]
		if !ok {
			return false
		}
		delete(st.pruned, conn)
	}

	if n := st.users[name]; n > 0 {
		if n == 1 {
			delete(st.users, name)
		} else {
			st.users[name] = n - 1
		}
	}
	return true
}

// Snapshot returns point-in-time copies of a room's connections and
// online usernames, safe to iterate without holding the registry lock.
func (r *Registry) Snapshot(room string) ([]Conn, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[room]
	if !ok {
		return nil, nil
	}

	conns := make([]Conn, 0, len(st.conns))
	for c := range st.conns {
		conns = append(conns, c)
	}
	users := make([]string, 0, len(st.users))
	for u := range st.users {
		users = append(users, u)
	}
	return conns, users
}

// Prune removes a batch of connections discovered dead during a
// broadcast sweep. One critical-section entry for the whole batch keeps
// lock contention bounded under mass disconnect. The username counts are
// left untouched; each pruned connection's session settles its own
// username via Leave.
func (r *Registry) Prune(room string, dead []Conn) {
	if len(dead) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rooms[room]
	if !ok {
		return
	}
	for _, c := range dead {
		if name, ok := st.conns[c]; ok {
			delete(st.conns, c)
			st.pruned[c] = name
		}
	}
}
