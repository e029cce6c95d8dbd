package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/hashnote/internal/noteservice"
	"github.com/starford/hashnote/internal/testutil"
)

const user = "local"

func testEnv(t *testing.T) (string, *Inbox, *noteservice.Service) {
	t.Helper()
	dir, fs := testutil.TestRoot(t)
	svc := noteservice.New(testutil.TestDB(t))
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return dir, New(fs, svc, user, logger), svc
}

func listNotes(t *testing.T, svc *noteservice.Service) int {
	t.Helper()
	_, total, err := svc.ListNotes(context.Background(), user, noteservice.ListQuery{})
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	return total
}

func TestSync_ImportsAndArchives(t *testing.T) {
	dir, in, svc := testEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "a.md"), []byte("First idea #idea"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "b.txt"), []byte("Plain text note"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "photo.png"), []byte("png"), 0o644)

	n, err := in.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n != 2 {
		t.Errorf("imported = %d, want 2", n)
	}
	if got := listNotes(t, svc); got != 2 {
		t.Errorf("notes = %d, want 2", got)
	}
	for _, name := range []string{"a.md", "b.txt"} {
		if _, err := os.Stat(filepath.Join(dir, ProcessedDir, name)); err != nil {
			t.Errorf("%s not archived: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s still in inbox", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "photo.png")); err != nil {
		t.Error("unrelated file should be left alone")
	}

	// A second pass finds nothing new, processed files are not re-imported.
	if n, _ := in.Sync(context.Background()); n != 0 {
		t.Errorf("second pass imported %d", n)
	}
}

func TestSync_Frontmatter(t *testing.T) {
	dir, in, svc := testEnv(t)
	file := "---\ncreated: 2025-06-15 08:30\ntags: [reading, Idea]\n---\nFinished the book #idea\n"
	_ = os.WriteFile(filepath.Join(dir, "book.md"), []byte(file), 0o644)

	if _, err := in.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	notes, _, _ := svc.ListNotes(context.Background(), user, noteservice.ListQuery{})
	if len(notes) != 1 {
		t.Fatalf("notes = %d", len(notes))
	}
	dn := notes[0]
	if dn.OriginalContent != "Finished the book #idea\n\n#reading" {
		t.Errorf("content = %q", dn.OriginalContent)
	}
	if strings.Join(dn.Tags, ",") != "idea,reading" {
		t.Errorf("tags = %v", dn.Tags)
	}
	if dn.CreatedAt.Year() != 2025 || dn.CreatedAt.Month() != time.June {
		t.Errorf("created = %v", dn.CreatedAt)
	}
}

func TestSync_NameCollisionInProcessed(t *testing.T) {
	dir, in, _ := testEnv(t)
	_ = os.MkdirAll(filepath.Join(dir, ProcessedDir), 0o755)
	_ = os.WriteFile(filepath.Join(dir, ProcessedDir, "dup.md"), []byte("old"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "dup.md"), []byte("new note"), 0o644)

	if n, _ := in.Sync(context.Background()); n != 1 {
		t.Fatalf("imported = %d", n)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, ProcessedDir))
	if len(entries) != 2 {
		t.Errorf("processed entries = %d, want 2", len(entries))
	}
}

func TestWithTags(t *testing.T) {
	tests := []struct {
		body string
		tags []string
		want string
	}{
		{"text", nil, "text"},
		{"text #a", []string{"A", "b"}, "text #a\n\n#b"},
		{"", []string{"x", "bad tag"}, "#x"},
		{"  spaced  ", []string{"#c"}, "spaced\n\n#c"},
	}
	for _, tc := range tests {
		if got := withTags(tc.body, tc.tags); got != tc.want {
			t.Errorf("withTags(%q, %v) = %q, want %q", tc.body, tc.tags, got, tc.want)
		}
	}
}

func TestWatch_ImportsNewFile(t *testing.T) {
	dir, in, svc := testEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "early.md"), []byte("before start"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var passes atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = in.Watch(ctx, func(int) { passes.Add(1) })
		close(done)
	}()

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return listNotes(t, svc) == 1
	}, "existing file not imported on start")

	_ = os.WriteFile(filepath.Join(dir, "late.md"), []byte("dropped later #inbox"), 0o644)

	testutil.Eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return listNotes(t, svc) == 2
	}, "new file not imported by watcher")

	testutil.Eventually(t, 2*time.Second, 20*time.Millisecond, func() bool {
		return passes.Load() >= 2
	}, "expected an onImport call per import pass")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
