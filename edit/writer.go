package edit

import (
	"fmt"
	"os"
	"sync"
	"time"
)

type fileLock struct {
	file   *os.File
	path   string
	locked bool
	mu     sync.Mutex
}

// WriterConfig controls how rewritten sources reach the disk
type WriterConfig struct {
	UseFsync       bool          // Force fsync for durability
	LockTimeout    time.Duration // Max time to wait for file lock
	TempSuffix     string        // Suffix for temporary files
	BackupOriginal bool          // Keep a timestamped .bak copy of the old content
}

// DefaultWriterConfig provides sensible defaults
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		UseFsync:       false,
		LockTimeout:    5 * time.Second,
		TempSuffix:     ".psi.tmp",
		BackupOriginal: false,
	}
}

// Writer replaces files atomically: content goes to a temporary sibling
// which is renamed over the target while a lock file is held.
type Writer struct {
	config WriterConfig
	locks  map[string]*fileLock
	mu     sync.Mutex
	now    func() time.Time
}

// NewWriter creates a new atomic writer
func NewWriter(config WriterConfig) *Writer {
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultWriterConfig().TempSuffix
	}
	return &Writer{
		config: config,
		locks:  make(map[string]*fileLock),
		now:    time.Now,
	}
}

// WriteFile atomically writes content to path
func (w *Writer) WriteFile(path, content string) error {
	if err := w.acquireLock(path); err != nil {
		return fmt.Errorf("failed to acquire lock for %s: %w", path, err)
	}
	defer w.releaseLock(path)

	originalInfo, err := os.Stat(path)
	var fileMode os.FileMode = 0o644
	if err == nil {
		fileMode = originalInfo.Mode()
	}

	if w.config.BackupOriginal && err == nil {
		if err := w.createBackup(path); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	tempPath := path + w.config.TempSuffix
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tempFile.WriteString(content); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write content: %w", err)
	}

	if w.config.UseFsync {
		if err := tempFile.Sync(); err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to sync: %w", err)
		}
	}
	tempFile.Close()

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to atomic rename: %w", err)
	}
	return nil
}

func (w *Writer) acquireLock(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.locks[path]; exists {
		return nil
	}

	lockPath := path + ".lock"
	deadline := time.Now().Add(w.config.LockTimeout)
	for {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			w.locks[path] = &fileLock{file: lockFile, path: lockPath, locked: true}
			// the pid lets other writers detect a lock left by a dead process
			fmt.Fprintf(lockFile, "%d\n", os.Getpid())
			lockFile.Sync()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		if isLockStale(lockPath) {
			os.Remove(lockPath)
			continue
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timeout waiting for lock on %s", path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (w *Writer) releaseLock(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.release(path)
}

// release drops the lock of path; w.mu must be held
func (w *Writer) release(path string) {
	lock, exists := w.locks[path]
	if !exists {
		return
	}

	lock.mu.Lock()
	defer lock.mu.Unlock()
	if lock.locked {
		lock.file.Close()
		os.Remove(lock.path)
		lock.locked = false
	}
	delete(w.locks, path)
}

// isLockStale checks if a lock file is from a dead process
func isLockStale(lockPath string) bool {
	content, err := os.ReadFile(lockPath)
	if err != nil {
		return true
	}

	var pid int
	if _, err := fmt.Sscanf(string(content), "%d", &pid); err != nil {
		return true
	}
	return !isProcessAlive(pid)
}

func (w *Writer) createBackup(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	backupPath := fmt.Sprintf("%s.bak.%s", path, w.now().Format("20060102-150405"))
	return os.WriteFile(backupPath, content, 0o644)
}

// Cleanup removes all locks (call on shutdown)
func (w *Writer) Cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path := range w.locks {
		w.release(path)
	}
}
