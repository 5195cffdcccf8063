package merge

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"sglocations.io/ner/s3client"
)

var ErrNoObjectStore = errors.New("s3 locations need an S3 client")

// Storage reads and writes whole files by location.
type Storage interface {
	Read(ctx context.Context, location string) ([]byte, error)
	Write(ctx context.Context, location string, data []byte) error
}

// ObjectStore is the part of s3client.Client the merger uses.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, data []byte, key string) (*s3manager.UploadOutput, error)
}

// Locations resolves s3:// locations against an object store and everything
// else against the local filesystem.
type Locations struct {
	Objects ObjectStore
}

func (locations Locations) Read(ctx context.Context, location string) ([]byte, error) {
	key, ok := s3client.ParseURI(location)
	if !ok {
		return os.ReadFile(location)
	}
	if locations.Objects == nil {
		return nil, ErrNoObjectStore
	}
	return locations.Objects.Download(ctx, key)
}

func (locations Locations) Write(ctx context.Context, location string, data []byte) error {
	key, ok := s3client.ParseURI(location)
	if !ok {
		return os.WriteFile(location, data, 0644)
	}
	if locations.Objects == nil {
		return ErrNoObjectStore
	}
	_, err := locations.Objects.Upload(ctx, data, key)
	return err
}

// NeedsObjectStore reports whether any location is an s3:// URI.
func NeedsObjectStore(locations ...string) bool {
	for _, location := range locations {
		if _, ok := s3client.ParseURI(location); ok {
			return true
		}
	}
	return false
}
