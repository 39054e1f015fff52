// Package storage defines the object-storage contract the Job Tracker
// pushes artifacts through (§1: "the object-storage backend" is an
// external collaborator) and an Azure Blob Storage implementation of it.
package storage

import "context"

// Object is one listed blob's key and size.
type Object struct {
	Key  string
	Size int64
}

// Store is the narrow blob contract the core depends on. Keys follow the
// {lob_id}/{team_id}/{job_id}/{file_name} layout from §6.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}
