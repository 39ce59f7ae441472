package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"seasoning/internal/logging"
)

func TestConfigureLoggingCreatesFile(t *testing.T) {
	t.Cleanup(func() { logging.SetDefaultWriter(os.Stdout) })

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "seasoning.log")

	file, err := configureLogging(path)
	if err != nil {
		t.Fatalf("configure logging: %v", err)
	}
	file.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat log file: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected new log file to be empty, got %d", info.Size())
	}
}

func TestRotateExistingLogArchivesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seasoning.log")
	if err := os.WriteFile(path, []byte("previous run"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	started := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	if err := rotateExistingLog(path, started); err != nil {
		t.Fatalf("rotate existing log: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected original log to be moved, stat err=%v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one rotated log file, found %d", len(entries))
	}
	want := "seasoning-2024-01-01_12-00-00.log"
	if entries[0].Name() != want {
		t.Fatalf("expected archive %s, got %s", want, entries[0].Name())
	}
}

func TestRotateExistingLogSkipsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seasoning.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := rotateExistingLog(path, time.Now()); err != nil {
		t.Fatalf("rotate existing log: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected empty log to stay in place: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "logs")); !os.IsNotExist(err) {
		t.Fatalf("expected no archive dir, stat err=%v", err)
	}
}

func TestRotateExistingLogAvoidsCollisions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seasoning.log")
	started := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if err := os.WriteFile(path, []byte("run"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		if err := rotateExistingLog(path, started); err != nil {
			t.Fatalf("rotate existing log: %v", err)
		}
	}

	second := filepath.Join(dir, "logs", "seasoning-2024-01-01_12-00-00-1.log")
	if _, err := os.Stat(second); err != nil {
		t.Fatalf("expected suffixed archive: %v", err)
	}
}

func TestPruneArchivesKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for day := 1; day <= 5; day++ {
		name := fmt.Sprintf("seasoning-2024-01-%02d_00-00-00.log", day)
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write archive: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "other-2024-01-01_00-00-00.log"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write foreign archive: %v", err)
	}

	if err := pruneArchives(dir, "seasoning", 2); err != nil {
		t.Fatalf("prune: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	got := strings.Join(names, ",")
	want := "other-2024-01-01_00-00-00.log,seasoning-2024-01-04_00-00-00.log,seasoning-2024-01-05_00-00-00.log"
	if got != want {
		t.Fatalf("unexpected archives after prune:\n got %s\nwant %s", got, want)
	}
}
