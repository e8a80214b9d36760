package board

import (
	"sort"
	"sync"
)

// Hub fans records out to the subscribers of their room. Stores use it to implement Subscribe.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]ChangeFunc
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]ChangeFunc)}
}

type hubSubscription struct {
	hub    *Hub
	roomID string
	id     uint64
	once   sync.Once
}

func (s *hubSubscription) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()
		delete(s.hub.subs[s.roomID], s.id)
		if len(s.hub.subs[s.roomID]) == 0 {
			delete(s.hub.subs, s.roomID)
		}
	})
	return nil
}

func (h *Hub) Subscribe(roomID string, fn ChangeFunc) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[uint64]ChangeFunc)
	}
	h.subs[roomID][h.nextID] = fn
	return &hubSubscription{hub: h, roomID: roomID, id: h.nextID}
}

// Publish calls every subscriber of rec's room, in subscription order, outside of the hub lock.
func (h *Hub) Publish(rec Record) {
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.subs[rec.RoomID]))
	for id := range h.subs[rec.RoomID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]ChangeFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[rec.RoomID][id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(rec)
	}
}

// Rooms returns the rooms having at least one subscriber.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.subs))
	for room := range h.subs {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[roomID])
}
