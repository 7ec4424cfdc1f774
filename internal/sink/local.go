package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const chunkSize = 1024

// Local appends to files in a directory. Saving the same file twice
// duplicates its content instead of overwriting it.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, fmt.Errorf("local sink: empty directory")
	}
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("local sink: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Name() string {
	return MethodLocal
}

// writerOnly hides io.ReaderFrom so io.CopyBuffer really copies in chunks.
type writerOnly struct {
	io.Writer
}

func (l *Local) Put(_ context.Context, file string, body io.Reader) Result {
	path := filepath.Join(l.dir, file)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return Fail(fmt.Errorf("open %s: %w", path, err))
	}

	n, err := io.CopyBuffer(writerOnly{f}, body, make([]byte, chunkSize))
	closeErr := f.Close()
	if err != nil {
		return Fail(fmt.Errorf("write %s: %w", path, err))
	}
	if closeErr != nil {
		return Fail(fmt.Errorf("close %s: %w", path, closeErr))
	}
	return Done(n)
}

func (l *Local) Close() error {
	return nil
}
