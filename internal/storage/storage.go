package storage

import (
	"io"
)

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage keeps uploaded files until they have been analysed.
type Storage interface {
	SaveFile(src io.Reader, info FileInfo) (string, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	Path(name string) (string, error)
	DeleteFile(name string) error
}
