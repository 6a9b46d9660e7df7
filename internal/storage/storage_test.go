package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testRecord struct {
	ID    string   `json:"id"`
	Count int      `json:"count"`
	Tags  []string `json:"tags"`
}

func newSQLiteCollection(t *testing.T) *SQLiteCollection[testRecord] {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	coll, err := NewSQLiteCollection[testRecord](db, KindConversations)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	return coll
}

func newRedisCollection(t *testing.T) (*RedisCollection[testRecord], *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() { mini.Close() })

	rdb := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCollection[testRecord](rdb, KindSpeakers), mini
}

func exerciseCollection(t *testing.T, coll Collection[testRecord]) {
	ctx := context.Background()

	if _, err := coll.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, id := range []string{"b", "a", "c"} {
		if err := coll.Put(ctx, id, &testRecord{ID: id, Count: 1}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	// Updating keeps the original position.
	if err := coll.Put(ctx, "b", &testRecord{ID: "b", Count: 2, Tags: []string{"x"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := coll.Get(ctx, "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Count != 2 || len(got.Tags) != 1 {
		t.Errorf("expected updated record, got %+v", got)
	}

	list, err := coll.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var order []string
	for _, r := range list {
		order = append(order, r.ID)
	}
	if strings.Join(order, ",") != "b,a,c" {
		t.Errorf("expected insertion order b,a,c, got %v", order)
	}

	if err := coll.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := coll.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted record to be gone, got %v", err)
	}
	list, _ = coll.List(ctx)
	if len(list) != 2 {
		t.Errorf("expected 2 records after delete, got %d", len(list))
	}
	if err := coll.Delete(ctx, "a"); err != nil {
		t.Errorf("deleting twice should not fail: %v", err)
	}
}

func TestSQLiteCollection(t *testing.T) {
	exerciseCollection(t, newSQLiteCollection(t))
}

func TestRedisCollection(t *testing.T) {
	coll, _ := newRedisCollection(t)
	exerciseCollection(t, coll)
}

func TestRedisCollection_KeyLayout(t *testing.T) {
	coll, mini := newRedisCollection(t)
	if err := coll.Put(context.Background(), "s1", &testRecord{ID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if !mini.Exists("conversate:speakers:s1") {
		t.Error("expected record key conversate:speakers:s1")
	}
	if !mini.Exists("conversate:speakers:_index") {
		t.Error("expected index key")
	}
}

func TestNewSQLiteCollection_UnknownKind(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := NewSQLiteCollection[testRecord](db, "users; DROP TABLE speakers"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestLocalStorage_AtomicWrites(t *testing.T) {
	ls := NewLocalStorage(t.TempDir())
	dir := ls.ConversationDir("abc", "Team sync #2")
	if filepath.Base(dir) != "abc_Teamsync2" {
		t.Fatalf("unexpected folder %q", filepath.Base(dir))
	}

	path := filepath.Join(dir, "merged_transcript.txt")
	if err := ls.WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ls.WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "second" {
		t.Fatalf("expected replaced content, got %q (%v)", data, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}

	if err := ls.WriteJSON(filepath.Join(dir, "stats.json"), map[string]int{"turns": 3}); err != nil {
		t.Fatal(err)
	}
	if !Exists(filepath.Join(dir, "stats.json")) {
		t.Error("expected stats.json")
	}

	if err := ls.RemoveDir(dir); err != nil {
		t.Fatal(err)
	}
	if Exists(dir) {
		t.Error("expected folder removed")
	}
}

func TestLocalStorage_ReplaceDir(t *testing.T) {
	root := t.TempDir()
	ls := NewLocalStorage(root)
	dir := filepath.Join(root, "conv", "segments")
	if err := ls.WriteFile(filepath.Join(dir, "old.mp3"), []byte("old")); err != nil {
		t.Fatal(err)
	}

	staged, err := ls.StageDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(staged) != filepath.Dir(dir) {
		t.Errorf("expected staging folder next to %s, got %s", dir, staged)
	}
	if err := ls.WriteFile(filepath.Join(staged, "new.mp3"), []byte("new")); err != nil {
		t.Fatal(err)
	}
	if !Exists(filepath.Join(dir, "old.mp3")) {
		t.Error("expected old contents untouched while staging")
	}

	if err := ls.ReplaceDir(staged, dir); err != nil {
		t.Fatal(err)
	}
	if Exists(filepath.Join(dir, "old.mp3")) || !Exists(filepath.Join(dir, "new.mp3")) {
		t.Error("expected folder to hold only the staged files")
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("expected staging folder gone, got %v", err)
	}
}

func TestDriveQuote(t *testing.T) {
	if got := driveQuote(`Bob's \ notes`); got != `Bob\'s \\ notes` {
		t.Errorf("unexpected quoting %q", got)
	}
}
