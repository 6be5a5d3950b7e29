package modstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemModStore keeps all state behind a single mutex so that the lazy eviction
// performed by readers and the bulk eviction performed by the sweeper are
// atomic per user key. No I/O happens while the lock is held.
type MemModStore struct {
	mu    sync.Mutex
	mutes map[int64]MuteRecord
	bans  map[int64]BanRecord
}

func NewMemModStore() *MemModStore {
	return &MemModStore{
		mutes: make(map[int64]MuteRecord),
		bans:  make(map[int64]BanRecord),
	}
}

var _ ModStore = (*MemModStore)(nil)

func (s *MemModStore) Ban(ctx context.Context, userID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans[userID] = BanRecord{UserID: userID, Reason: reason}
	delete(s.mutes, userID)
	return nil
}

func (s *MemModStore) Unban(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bans[userID]
	delete(s.bans, userID)
	return ok, nil
}

func (s *MemModStore) BanStatus(ctx context.Context, userID int64) (*BanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.bans[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemModStore) Mute(ctx context.Context, userID int64, d time.Duration, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutes[userID] = MuteRecord{
		UserID:   userID,
		UnmuteAt: time.Now().Add(d),
		Reason:   reason,
	}
	return nil
}

func (s *MemModStore) Unmute(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evictIfExpired(userID, time.Now()) {
		return false, nil
	}
	_, ok := s.mutes[userID]
	delete(s.mutes, userID)
	return ok, nil
}

func (s *MemModStore) MuteStatus(ctx context.Context, userID int64) (*MuteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evictIfExpired(userID, time.Now()) {
		return nil, nil
	}
	rec, ok := s.mutes[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemModStore) SweepExpired(ctx context.Context, now time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evicted []int64
	for userID := range s.mutes {
		if s.evictIfExpired(userID, now) {
			evicted = append(evicted, userID)
		}
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i] < evicted[j] })
	return evicted, nil
}

// evictIfExpired is the single eviction primitive shared by readers and the
// sweeper. Callers must hold s.mu.
func (s *MemModStore) evictIfExpired(userID int64, now time.Time) bool {
	rec, ok := s.mutes[userID]
	if !ok || now.Before(rec.UnmuteAt) {
		return false
	}
	delete(s.mutes, userID)
	return true
}
