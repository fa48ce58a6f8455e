package repo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storybook/internal/domain"
)

// fakeExecutor scripts the three SQLExecutor entry points.
type fakeExecutor struct {
	execFn     func(query string, args ...any) (pgconn.CommandTag, error)
	queryRowFn func(query string, args ...any) pgx.Row
	queryFn    func(query string, args ...any) (pgx.Rows, error)
}

func (f *fakeExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return f.execFn(query, args...)
}

func (f *fakeExecutor) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	return f.queryRowFn(query, args...)
}

func (f *fakeExecutor) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	return f.queryFn(query, args...)
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// fakeRows serves one scripted row. Unstubbed pgx.Rows methods panic via the
// nil embedded interface, which is fine for these tests.
type fakeRows struct {
	pgx.Rows
	scan scanFunc
	used bool
}

func (r *fakeRows) Next() bool {
	if r.used {
		return false
	}
	r.used = true
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return r.scan(dest...) }
func (r *fakeRows) Err() error             { return nil }
func (r *fakeRows) Close()                 {}

func sampleStory() *domain.Story {
	s := &domain.Story{
		ID:        "6b3f0a9e-0000-0000-0000-000000000001",
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Title:     "The Brave Snail",
		Lesson:    "Slow is fine.",
		Theme:     "watercolor",
		Language:  "en",
		Pages:     []domain.Page{{Number: 1, Text: "hello", ImagePrompt: "a snail"}},
	}
	s.Pages[0].Image = s.Pages[0].Image.MarkReady([]byte("img"))
	return s
}

func TestStoryPutEncodesPages(t *testing.T) {
	var gotArgs []any
	exec := &fakeExecutor{
		execFn: func(query string, args ...any) (pgconn.CommandTag, error) {
			gotArgs = args
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}

	story := sampleStory()
	if err := NewStoryRepository(exec).Put(context.Background(), story); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(gotArgs) != 8 {
		t.Fatalf("arg count = %d, want 8", len(gotArgs))
	}
	if gotArgs[0] != story.ID || gotArgs[2] != story.Title {
		t.Fatalf("id/title args = %v / %v", gotArgs[0], gotArgs[2])
	}
	pages, ok := gotArgs[7].([]byte)
	if !ok || len(pages) == 0 {
		t.Fatalf("pages arg not JSON bytes: %T", gotArgs[7])
	}
}

func TestStoryPutGetRoundTrip(t *testing.T) {
	stored := map[string][]any{}
	exec := &fakeExecutor{
		execFn: func(query string, args ...any) (pgconn.CommandTag, error) {
			stored[args[0].(string)] = args
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
		queryRowFn: func(query string, args ...any) pgx.Row {
			row, ok := stored[args[0].(string)]
			return scanFunc(func(dest ...any) error {
				if !ok {
					return pgx.ErrNoRows
				}
				*dest[0].(*string) = row[0].(string)
				*dest[1].(*time.Time) = row[1].(time.Time)
				*dest[2].(*string) = row[2].(string)
				*dest[3].(*string) = row[3].(string)
				*dest[4].(*string) = row[4].(string)
				*dest[5].(*string) = row[5].(string)
				*dest[6].(*[]string) = nil
				*dest[7].(*[]byte) = row[7].([]byte)
				return nil
			})
		},
	}

	r := NewStoryRepository(exec)
	want := sampleStory()
	if err := r.Put(context.Background(), want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := r.GetByID(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != want.Title || len(got.Pages) != 1 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if string(got.Pages[0].Image.Payload) != "img" || !got.Pages[0].Image.Ready() {
		t.Fatal("image payload did not survive the page codec")
	}
}

func TestStoryGetByIDNotFound(t *testing.T) {
	exec := &fakeExecutor{
		queryRowFn: func(query string, args ...any) pgx.Row {
			return scanFunc(func(dest ...any) error { return pgx.ErrNoRows })
		},
	}
	if _, err := NewStoryRepository(exec).GetByID(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStoryDeleteNotFound(t *testing.T) {
	exec := &fakeExecutor{
		execFn: func(query string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}
	if err := NewStoryRepository(exec).Delete(context.Background(), "missing"); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCharacterListScan(t *testing.T) {
	now := time.Now().UTC()
	exec := &fakeExecutor{
		queryFn: func(query string, args ...any) (pgx.Rows, error) {
			return &fakeRows{scan: func(dest ...any) error {
				*dest[0].(*string) = "c1"
				*dest[1].(*time.Time) = now
				*dest[2].(*string) = "Luna"
				*dest[3].(*[]byte) = []byte("ref")
				return nil
			}}, nil
		},
	}
	chars, err := NewCharacterRepository(exec).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(chars) != 1 || chars[0].Name != "Luna" || string(chars[0].Image) != "ref" {
		t.Fatalf("characters = %+v", chars)
	}
}
