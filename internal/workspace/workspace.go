package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// LockFileName is the per-job lock file created inside each job directory.
const LockFileName = ".lock"

var (
	// ErrInvalidJobID indicates an identifier that cannot name a job directory.
	ErrInvalidJobID = errors.New("invalid job id")
	// ErrJobBusy indicates another process holds the job directory lock.
	ErrJobBusy = errors.New("job directory is locked by another process")
)

// Root is the base directory under which job directories are created.
type Root struct {
	dir string
}

// Open ensures the base directory exists and returns a Root for it.
func Open(dir string) (*Root, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("workspace directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %q: %w", dir, err)
	}
	return &Root{dir: dir}, nil
}

// Dir returns the base directory.
func (r *Root) Dir() string {
	return r.dir
}

// JobDir returns the directory for jobID without touching the filesystem.
func (r *Root) JobDir(jobID string) (string, error) {
	if err := ValidateJobID(jobID); err != nil {
		return "", err
	}
	return filepath.Join(r.dir, jobID), nil
}

// ValidateJobID rejects identifiers that would escape the workspace root.
func ValidateJobID(jobID string) error {
	switch {
	case strings.TrimSpace(jobID) != jobID, jobID == "", jobID == ".", jobID == "..":
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	case strings.ContainsAny(jobID, `/\`), strings.ContainsRune(jobID, 0):
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	case strings.HasPrefix(jobID, "."):
		return fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return nil
}

// Create makes the directory for jobID and locks it for the caller. The
// returned Job must be released once the job reaches a terminal state.
func (r *Root) Create(jobID string) (*Job, error) {
	dir, err := r.JobDir(jobID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock job directory: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobBusy, dir)
	}
	return &Job{id: jobID, dir: dir, lock: lock}, nil
}

// ReadFile reads name from the job directory. A missing job or file yields an
// error matching fs.ErrNotExist.
func (r *Root) ReadFile(jobID, name string) ([]byte, error) {
	dir, err := r.JobDir(jobID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Running reports whether a live process holds jobID's directory lock.
func (r *Root) Running(jobID string) bool {
	dir, err := r.JobDir(jobID)
	if err != nil {
		return false
	}
	if _, err := os.Stat(dir); err != nil {
		return false
	}
	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

// JobIDs lists the job directories currently present under the root.
func (r *Root) JobIDs() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || ValidateJobID(entry.Name()) != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}

// Job is a locked job directory.
type Job struct {
	id   string
	dir  string
	lock *flock.Flock
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// Dir returns the job working directory.
func (j *Job) Dir() string {
	return j.dir
}

// WriteFile atomically replaces name inside the job directory with data.
func (j *Job) WriteFile(name string, data []byte) error {
	target := filepath.Join(j.dir, name)
	tmp, err := os.CreateTemp(j.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Release drops the job directory lock. It is safe to call more than once.
func (j *Job) Release() error {
	if j == nil || j.lock == nil {
		return nil
	}
	return j.lock.Unlock()
}
