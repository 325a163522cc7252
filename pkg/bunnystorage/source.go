package bunnystorage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source is the payload of an upload. Construct one with FromLocalPath or
// FromBytes.
type Source interface {
	// load returns the payload and the object name it should be stored under.
	load() (data []byte, name string, err error)
}

type localSource struct {
	path string
}

// FromLocalPath uploads the file at path under its base name.
func FromLocalPath(path string) Source {
	return localSource{path: path}
}

func (s localSource) load() ([]byte, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", fmt.Errorf("bunnystorage: read local file: %w", err)
	}
	return data, filepath.Base(s.path), nil
}

type bytesSource struct {
	data []byte
	name string
}

// FromBytes uploads data under name. The name is required.
func FromBytes(data []byte, name string) Source {
	return bytesSource{data: data, name: name}
}

func (s bytesSource) load() ([]byte, string, error) {
	if strings.TrimSpace(s.name) == "" {
		return nil, "", fmt.Errorf("%w: object name is required when uploading bytes", ErrInvalidArgument)
	}
	return s.data, s.name, nil
}
