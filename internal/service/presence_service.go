package service

import (
	"sync"

	"go.uber.org/zap"
)

// PresenceSubscription represents one viewer attached to a lesson room.
// Count updates arrive on Updates until Leave is called.
type PresenceSubscription struct {
	lessonID string
	updates  chan int
}

// Updates streams the room's viewer count. The channel closes when the
// subscription leaves the room.
func (s *PresenceSubscription) Updates() <-chan int {
	return s.updates
}

// PresenceService tracks how many viewers are currently watching each
// lesson and fans the count out to everyone in the room. State lives in
// memory only; a restart empties every room.
type PresenceService struct {
	mu     sync.Mutex
	rooms  map[string]map[*PresenceSubscription]struct{}
	logger *zap.Logger
}

// NewPresenceService constructs a PresenceService instance.
func NewPresenceService(logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{
		rooms:  map[string]map[*PresenceSubscription]struct{}{},
		logger: logger,
	}
}

// Join adds a viewer to the lesson's room and broadcasts the new count
// to the other viewers. The joiner reads the count via ViewerCount.
func (s *PresenceService) Join(lessonID string) *PresenceSubscription {
	sub := &PresenceSubscription{
		lessonID: lessonID,
		// buffered so a slow reader only misses intermediate counts
		updates: make(chan int, 8),
	}

	s.mu.Lock()
	room, ok := s.rooms[lessonID]
	if !ok {
		room = map[*PresenceSubscription]struct{}{}
		s.rooms[lessonID] = room
	}
	room[sub] = struct{}{}
	s.broadcastLocked(lessonID, sub)
	s.mu.Unlock()

	s.logger.Debug("viewer joined lesson", zap.String("lessonId", lessonID))
	return sub
}

// Leave removes the subscription from its room, closes its channel and
// broadcasts the reduced count to the remaining viewers.
func (s *PresenceService) Leave(sub *PresenceSubscription) {
	if sub == nil {
		return
	}

	s.mu.Lock()
	room, ok := s.rooms[sub.lessonID]
	if ok {
		if _, member := room[sub]; member {
			delete(room, sub)
			close(sub.updates)
		}
		if len(room) == 0 {
			delete(s.rooms, sub.lessonID)
		} else {
			s.broadcastLocked(sub.lessonID, nil)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("viewer left lesson", zap.String("lessonId", sub.lessonID))
}

// ViewerCount reports how many viewers are in the lesson's room.
func (s *PresenceService) ViewerCount(lessonID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[lessonID])
}

// broadcastLocked pushes the current count to every room member except
// the one given. The send never blocks; a subscriber with a full buffer
// skips the update and catches up on the next one.
func (s *PresenceService) broadcastLocked(lessonID string, except *PresenceSubscription) {
	room := s.rooms[lessonID]
	count := len(room)
	for sub := range room {
		if sub == except {
			continue
		}
		select {
		case sub.updates <- count:
		default:
		}
	}
}
