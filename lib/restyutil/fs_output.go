package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes each HTTP message into its own file named after
// the message id.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates a fresh subdirectory of dir for this run.
// Existing contents of dir are left alone.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	run, err := os.MkdirTemp(dir, "http-")
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: run}, nil
}

// Dir is the directory messages are written to.
func (o FilesystemOutput) Dir() string {
	return o.directory
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
