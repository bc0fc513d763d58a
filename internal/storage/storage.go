package storage

import (
	"errors"
	"io"
)

var ErrInvalidPath = errors.New("invalid path")

// Storage holds capture output files addressed by their bare file name.
type Storage interface {
	Path(name string) (string, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	Size(name string) (int64, error)
	DeleteFile(name string) error
}
