package web

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSessionStoreSweep(t *testing.T) {
	s := newSessionStore(time.Hour)
	defer s.Close()

	oldID, freshID := uuid.New(), uuid.New()
	s.PutUpload(&Upload{ID: oldID, Created: time.Now().Add(-2 * time.Hour)})
	s.PutUpload(&Upload{ID: freshID, Created: time.Now()})

	oldRun, freshRun := uuid.New(), uuid.New()
	s.PutRun(&Run{ID: oldRun, Created: time.Now().Add(-2 * time.Hour)})
	s.PutRun(&Run{ID: freshRun, Created: time.Now()})

	s.sweepOnce(time.Now().Add(-time.Hour))

	if _, ok := s.GetUpload(oldID); ok {
		t.Error("expired upload should be swept")
	}
	if _, ok := s.GetUpload(freshID); !ok {
		t.Error("fresh upload should survive the sweep")
	}
	if _, ok := s.GetRun(oldRun); ok {
		t.Error("expired run should be swept")
	}
	if _, ok := s.GetRun(freshRun); !ok {
		t.Error("fresh run should survive the sweep")
	}
}

func TestUploadTableLookup(t *testing.T) {
	u := &Upload{}
	if u.Table("anything") != nil {
		t.Error("lookup on empty upload should return nil")
	}
}
