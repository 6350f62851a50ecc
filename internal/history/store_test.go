package history

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB records executed SQL and serves canned query results.
type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	execErr  error

	rows    *fakeRows
	callErr error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.rows, nil
}

// fakeRows serves pre-built records through the pgx.Rows interface.
type fakeRows struct {
	records []RunRecord
	idx     int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.records) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	rec := r.records[r.idx-1]
	*dest[0].(*uuid.UUID) = rec.ID
	*dest[1].(*string) = rec.FileName
	*dest[2].(*string) = rec.Sheet
	*dest[3].(*string) = rec.URLColumn
	*dest[4].(*int) = rec.TotalRows
	*dest[5].(*int) = rec.Succeeded
	*dest[6].(*int) = rec.Failed
	*dest[7].(*int64) = rec.DurationMS
	*dest[8].(*time.Time) = rec.CreatedAt
	return nil
}
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func TestInit(t *testing.T) {
	db := &fakeDB{}
	if err := New(db).Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS qr_runs") {
		t.Errorf("Init() executed %v, want create-table DDL", db.execSQL)
	}
}

func TestRecord(t *testing.T) {
	db := &fakeDB{}
	rec, err := New(db).Record(context.Background(), RunRecord{
		FileName:  "links.csv",
		Sheet:     "Sheet1",
		URLColumn: "url",
		TotalRows: 3,
		Succeeded: 2,
		Failed:    1,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if rec.ID == uuid.Nil {
		t.Error("Record() did not assign an ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Record() did not assign CreatedAt")
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "INSERT INTO qr_runs") {
		t.Errorf("Record() executed %v, want insert", db.execSQL)
	}
	if len(db.execArgs[0]) != 9 {
		t.Errorf("Record() passed %d args, want 9", len(db.execArgs[0]))
	}
}

func TestRecord_ExecError(t *testing.T) {
	db := &fakeDB{execErr: errors.New("boom")}
	if _, err := New(db).Record(context.Background(), RunRecord{}); err == nil {
		t.Fatal("Record() expected error")
	}
}

func TestRecent(t *testing.T) {
	want := []RunRecord{
		{ID: uuid.New(), FileName: "b.xlsx", Sheet: "S", URLColumn: "u", TotalRows: 5, Succeeded: 5, CreatedAt: time.Now()},
		{ID: uuid.New(), FileName: "a.csv", Sheet: "Sheet1", URLColumn: "url", TotalRows: 2, Succeeded: 1, Failed: 1, CreatedAt: time.Now().Add(-time.Hour)},
	}
	db := &fakeDB{rows: &fakeRows{records: want}}

	got, err := New(db).Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d records, want 2", len(got))
	}
	if got[0].FileName != "b.xlsx" || got[1].FileName != "a.csv" {
		t.Errorf("Recent() = %+v", got)
	}
}

func TestRecent_QueryError(t *testing.T) {
	db := &fakeDB{callErr: errors.New("down")}
	if _, err := New(db).Recent(context.Background(), 10); err == nil {
		t.Fatal("Recent() expected error")
	}
}
