package staging

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/jvs-project/epubpack/pkg/errclass"
)

// SessionPrefix names per-session working roots inside the staging dir.
const SessionPrefix = "session-"

// LockSuffix is appended to a working root to form its lock file.
const LockSuffix = ".lock"

// Session is an exclusively owned working root. The owner holds a flock on
// the sibling "<root>.lock" for the session's lifetime so that CleanStale
// never removes a root that is still in use.
type Session struct {
	ID   string
	Root string
	lock *flock.Flock
}

// DefaultDir is the staging directory used when none is configured.
func DefaultDir() string {
	return os.TempDir()
}

// NewSession allocates a fresh working root under baseDir (DefaultDir when
// empty) and locks it.
func NewSession(baseDir string) (*Session, error) {
	if strings.TrimSpace(baseDir) == "" {
		baseDir = DefaultDir()
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errclass.IO("mkdir", baseDir, err)
	}

	id := uuid.NewString()
	root := filepath.Join(baseDir, SessionPrefix+id)

	lk := flock.New(root + LockSuffix)
	locked, err := lk.TryLock()
	if err != nil {
		return nil, errclass.IO("lock", root+LockSuffix, err)
	}
	if !locked {
		return nil, errclass.ErrIO.WithKind(errclass.KindAlreadyExists).WithMessagef("working root already locked: %s", root)
	}

	if err := os.Mkdir(root, 0755); err != nil {
		lk.Unlock()
		os.Remove(root + LockSuffix)
		return nil, errclass.IO("mkdir", root, err)
	}
	return &Session{ID: id, Root: root, lock: lk}, nil
}

// Release removes the working root and drops the lock. Safe to call more
// than once.
func (s *Session) Release() error {
	if s == nil {
		return nil
	}
	err := os.RemoveAll(s.Root)
	if s.lock != nil {
		s.lock.Unlock()
		os.Remove(s.lock.Path())
		s.lock = nil
	}
	return errclass.IO("remove", s.Root, err)
}

// Locked reports whether the session still holds its lock.
func (s *Session) Locked() bool {
	return s != nil && s.lock != nil && s.lock.Locked()
}
