package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qrsheet/qrsheet/internal/archive"
	"github.com/qrsheet/qrsheet/internal/batch"
	"github.com/qrsheet/qrsheet/internal/tabular"
)

// Upload is a parsed spreadsheet held in memory between the upload call
// and the generate call.
type Upload struct {
	ID       uuid.UUID
	FileName string
	Tables   []*tabular.Table
	Created  time.Time
}

// Table returns the sheet with the given name, or nil.
func (u *Upload) Table(sheet string) *tabular.Table {
	for _, t := range u.Tables {
		if t.Sheet == sheet {
			return t
		}
	}
	return nil
}

// Run is a finished generation run kept available for download.
type Run struct {
	ID       uuid.UUID
	UploadID uuid.UUID
	Outcome  *batch.Outcome
	Archive  *archive.Archive
	Created  time.Time
}

// sessionStore keeps uploads and runs in memory with a TTL. Entries
// older than the TTL are dropped by a background sweep.
type sessionStore struct {
	mu      sync.RWMutex
	uploads map[uuid.UUID]*Upload
	runs    map[uuid.UUID]*Run
	ttl     time.Duration
	done    chan struct{}
}

func newSessionStore(ttl time.Duration) *sessionStore {
	s := &sessionStore{
		uploads: make(map[uuid.UUID]*Upload),
		runs:    make(map[uuid.UUID]*Run),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

// sweep removes expired entries every minute.
func (s *sessionStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepOnce(time.Now().Add(-s.ttl))
		}
	}
}

// sweepOnce drops entries created before cutoff.
func (s *sessionStore) sweepOnce(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.uploads {
		if u.Created.Before(cutoff) {
			delete(s.uploads, id)
		}
	}
	for id, r := range s.runs {
		if r.Created.Before(cutoff) {
			delete(s.runs, id)
		}
	}
}

// Close stops the background sweep.
func (s *sessionStore) Close() {
	close(s.done)
}

func (s *sessionStore) PutUpload(u *Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[u.ID] = u
}

func (s *sessionStore) GetUpload(id uuid.UUID) (*Upload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.uploads[id]
	return u, ok
}

func (s *sessionStore) PutRun(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
}

func (s *sessionStore) GetRun(id uuid.UUID) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok
}
