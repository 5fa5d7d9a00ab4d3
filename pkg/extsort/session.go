package extsort

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
)

const (
	// tempDirPattern names the spill directory created when the operator
	// does not supply one.
	tempDirPattern = "gourcefang-sort-"

	// chunkNameFormat names spilled chunk files within the session dir.
	chunkNameFormat = "chunk-%05d.lz4"

	// chunkFilePerm restricts spill files to the owning user.
	chunkFilePerm = 0o600
)

var (
	// ErrTempDirMissing indicates a user-supplied temp location whose
	// parent directory does not exist.
	ErrTempDirMissing = errors.New("temporary directory path does not exist")

	// ErrTempDirNotEmpty indicates a temp directory that still holds
	// foreign files at teardown and is therefore kept.
	ErrTempDirNotEmpty = errors.New("temporary directory still contains files")
)

// tempDirPerm restricts the spill directory to the owning user.
const tempDirPerm = 0o750

// Session is the process-scoped spill state of one external sort: the
// temp directory, the ordered list of spilled chunk files, and a counter
// for unique chunk names. Torn down with Close on normal completion;
// abnormal termination may leak the directory, which operators must
// remove by hand.
type Session struct {
	dir    string
	seq    int
	chunks []string
}

// NewSession prepares the spill directory. With an empty dir a uniquely
// named directory is created under the current working directory, so
// spill files land on the same filesystem as typical output rather than
// on a size-limited system temp mount. A user-supplied directory is
// created on demand; its parent must already exist.
func NewSession(dir string) (*Session, error) {
	if dir == "" {
		created, err := os.MkdirTemp(".", tempDirPattern)
		if err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}

		return &Session{dir: created}, nil
	}

	parent := filepath.Dir(filepath.Clean(dir))

	_, statErr := os.Stat(parent)
	if statErr != nil {
		return nil, fmt.Errorf("%s: %w", dir, ErrTempDirMissing)
	}

	mkdirErr := os.MkdirAll(dir, tempDirPerm)
	if mkdirErr != nil {
		return nil, fmt.Errorf("create temp dir: %w", mkdirErr)
	}

	return &Session{dir: dir}, nil
}

// Dir returns the spill directory path.
func (s *Session) Dir() string {
	return s.dir
}

// Chunks returns the spilled chunk files in spill order. The slice is
// owned by the session.
func (s *Session) Chunks() []string {
	return s.chunks
}

// writeChunk persists one sorted run as a new chunk file: length-prefixed
// binary records inside a single lz4 frame.
func (s *Session) writeChunk(events []gource.Event) error {
	name := fmt.Sprintf(chunkNameFormat, s.seq)
	path := filepath.Join(s.dir, name)

	file, createErr := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, chunkFilePerm)
	if createErr != nil {
		return fmt.Errorf("create chunk %s: %w", name, createErr)
	}

	fail := func(err error) error {
		_ = file.Close()
		_ = os.Remove(path)

		return err
	}

	compressor := lz4.NewWriter(file)

	var buf []byte

	for _, ev := range events {
		record, encodeErr := appendRecord(buf[:0], ev)
		if encodeErr != nil {
			return fail(fmt.Errorf("chunk %s: %w", name, encodeErr))
		}

		buf = record

		_, writeErr := compressor.Write(record)
		if writeErr != nil {
			return fail(fmt.Errorf("write chunk %s: %w", name, writeErr))
		}
	}

	closeErr := compressor.Close()
	if closeErr != nil {
		return fail(fmt.Errorf("finalize chunk %s: %w", name, closeErr))
	}

	fileErr := file.Close()
	if fileErr != nil {
		return fail(fmt.Errorf("close chunk %s: %w", name, fileErr))
	}

	s.chunks = append(s.chunks, path)
	s.seq++

	return nil
}

// Close removes any chunk files still on disk, then removes the temp
// directory itself if nothing else is left inside. A directory holding
// foreign files is kept and reported via ErrTempDirNotEmpty.
func (s *Session) Close() error {
	var errs []error

	for _, path := range s.chunks {
		removeErr := os.Remove(path)
		if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			errs = append(errs, removeErr)
		}
	}

	s.chunks = nil

	entries, readErr := os.ReadDir(s.dir)

	switch {
	case errors.Is(readErr, fs.ErrNotExist):
	case readErr != nil:
		errs = append(errs, fmt.Errorf("read temp dir: %w", readErr))
	case len(entries) > 0:
		errs = append(errs, fmt.Errorf("%s: %w", s.dir, ErrTempDirNotEmpty))
	default:
		rmErr := os.Remove(s.dir)
		if rmErr != nil {
			errs = append(errs, fmt.Errorf("remove temp dir: %w", rmErr))
		}
	}

	return errors.Join(errs...)
}
