package devserver

import (
	"maps"
	"sync"
	"time"

	"github.com/netplus/netprep/internal/progress"
)

// progressStore is the per-user progress kept in memory.
type progressStore struct {
	mu      sync.Mutex
	byUser  map[string]map[string]progress.Record
	version map[string]int64
}

func newProgressStore() *progressStore {
	return &progressStore{
		byUser:  make(map[string]map[string]progress.Record),
		version: make(map[string]int64),
	}
}

func (s *progressStore) all(user string) map[string]progress.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]progress.Record, len(s.byUser[user]))
	maps.Copy(out, s.byUser[user])
	return out
}

func (s *progressStore) get(user, componentID string) (progress.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byUser[user][componentID]
	return r, ok
}

func (s *progressStore) update(user, componentID string, u progress.Update, now time.Time) progress.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.userRecords(user)
	current, ok := records[componentID]
	if !ok {
		current = progress.Record{ComponentID: componentID}
	}

	next := u.Apply(current, now)
	records[componentID] = next
	s.version[user]++
	return next
}

// sync resolves the client's records against the stored ones and keeps the result.
func (s *progressStore) sync(user string, client map[string]progress.Record, now time.Time) progress.SyncData {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := progress.Resolve(client, s.userRecords(user))
	s.byUser[user] = res.Resolved
	s.version[user]++

	out := make(map[string]progress.Record, len(res.Resolved))
	maps.Copy(out, res.Resolved)
	return progress.SyncData{
		ComponentProgress: out,
		Conflicts:         res.Conflicts,
		LastSyncedAt:      now.UTC(),
		Version:           s.version[user],
	}
}

func (s *progressStore) reset(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byUser, user)
	s.version[user]++
}

func (s *progressStore) userRecords(user string) map[string]progress.Record {
	records, ok := s.byUser[user]
	if !ok {
		records = make(map[string]progress.Record)
		s.byUser[user] = records
	}
	return records
}
