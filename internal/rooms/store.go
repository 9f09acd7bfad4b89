package rooms

import (
	"errors"
	"sync"
)

// ErrRoomNotFound is returned when a room id resolves to no live room.
var ErrRoomNotFound = errors.New("room not found")

const createRetries = 5

// Store owns the mapping of room id -> Room and the reverse index of
// participant identity -> room id. The two maps share one RWMutex; per-room
// state is guarded by each Room's own lock.
type Store struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	members map[string]string // participant identity -> room id
}

// NewStore creates an empty room store.
func NewStore() *Store {
	return &Store{
		rooms:   make(map[string]*Room),
		members: make(map[string]string),
	}
}

// Create generates a unique room code and inserts a new active room.
func (s *Store) Create(teacherName string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < createRetries; i++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		if _, taken := s.rooms[code]; taken {
			continue
		}
		room := newRoom(code, teacherName)
		s.rooms[code] = room
		return room, nil
	}
	return nil, errors.New("could not allocate a unique room code")
}

// Get returns the room for an id.
func (s *Store) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Remove deletes a room and every reverse-index entry pointing at it.
// No-op if the room is already gone.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return
	}
	delete(s.rooms, id)
	for member, roomID := range s.members {
		if roomID == id {
			delete(s.members, member)
		}
	}
}

// Bind records which room a participant identity currently occupies.
func (s *Store) Bind(participantID, roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[participantID] = roomID
}

// Unbind removes a participant's reverse-index entry.
func (s *Store) Unbind(participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, participantID)
}

// RoomOf resolves a participant identity to its current room id.
func (s *Store) RoomOf(participantID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.members[participantID]
	return id, ok
}

// List returns summaries of all live rooms.
func (s *Store) List() []Summary {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	return out
}

// Rooms returns all live rooms, for the janitor sweep.
func (s *Store) Rooms() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
