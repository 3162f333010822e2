package edit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultWriterConfig(t *testing.T) {
	config := DefaultWriterConfig()

	if config.TempSuffix != ".psi.tmp" {
		t.Errorf("Expected TempSuffix '.psi.tmp', got '%s'", config.TempSuffix)
	}
	if config.BackupOriginal {
		t.Error("Expected BackupOriginal to be false by default")
	}
	if config.LockTimeout != 5*time.Second {
		t.Errorf("Expected LockTimeout 5s, got %v", config.LockTimeout)
	}
}

func TestWriter_WriteFile_Simple(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "A.java")
	writer := NewWriter(DefaultWriterConfig())

	content := "class A {}\n"
	if err := writer.WriteFile(testFile, content); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(data) != content {
		t.Errorf("Expected content '%s', got '%s'", content, string(data))
	}

	for _, leftover := range []string{testFile + ".lock", testFile + ".psi.tmp"} {
		if _, err := os.Stat(leftover); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be removed", leftover)
		}
	}
}

func TestWriter_WriteFile_PreservesMode(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "run.sh")
	if err := os.WriteFile(testFile, []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}

	writer := NewWriter(WriterConfig{LockTimeout: time.Second, UseFsync: true})
	if err := writer.WriteFile(testFile, "new"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("Expected mode 0755, got %v", info.Mode().Perm())
	}
}

func TestWriter_WriteFile_WithBackup(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "A.java")
	if err := os.WriteFile(testFile, []byte("class A {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	config := DefaultWriterConfig()
	config.BackupOriginal = true
	writer := NewWriter(config)
	fixed := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	writer.now = func() time.Time { return fixed }

	if err := writer.WriteFile(testFile, "class B {}"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	backup := testFile + ".bak.20240301-123000"
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("Expected backup file: %v", err)
	}
	if string(data) != "class A {}" {
		t.Errorf("Backup has wrong content: %q", data)
	}
}

func TestWriter_LockTimeout(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "A.java")
	// a lock held by this very process never goes stale
	if err := os.WriteFile(testFile+".lock", []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}

	writer := NewWriter(WriterConfig{LockTimeout: 100 * time.Millisecond})
	err := writer.WriteFile(testFile, "x")
	if err == nil {
		t.Fatal("Expected lock timeout error")
	}
	if !strings.Contains(err.Error(), "timeout waiting for lock") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestWriter_StaleLock(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "A.java")
	if err := os.WriteFile(testFile+".lock", []byte("not a pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	writer := NewWriter(WriterConfig{LockTimeout: time.Second})
	if err := writer.WriteFile(testFile, "x"); err != nil {
		t.Fatalf("Expected stale lock to be taken over: %v", err)
	}
}

func TestWriter_Cleanup(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "A.java")
	writer := NewWriter(DefaultWriterConfig())

	if err := writer.acquireLock(testFile); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(testFile + ".lock"); err != nil {
		t.Fatalf("Expected lock file: %v", err)
	}

	writer.Cleanup()

	if _, err := os.Stat(testFile + ".lock"); !os.IsNotExist(err) {
		t.Error("Expected lock file to be removed by Cleanup")
	}
	if len(writer.locks) != 0 {
		t.Errorf("Expected no locks, got %d", len(writer.locks))
	}
}

func TestIsProcessAlive(t *testing.T) {
	if !isProcessAlive(os.Getpid()) {
		t.Error("Expected current process to be alive")
	}
	for _, pid := range []int{-1, 0} {
		if isProcessAlive(pid) {
			t.Errorf("Expected pid %d to be reported dead", pid)
		}
	}
}

func TestIsLockStale(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "Main.java.lock")

	if !isLockStale(lockPath) {
		t.Error("Expected a missing lock to be stale")
	}
	if err := os.WriteFile(lockPath, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !isLockStale(lockPath) {
		t.Error("Expected an unreadable pid to be stale")
	}
	if err := os.WriteFile(lockPath, fmt.Appendf(nil, "%d", os.Getpid()), 0o644); err != nil {
		t.Fatal(err)
	}
	if isLockStale(lockPath) {
		t.Error("Expected a lock held by this process to be live")
	}
}
