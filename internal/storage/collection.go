// Package storage persists conversation and speaker records and writes
// conversation artifacts to disk.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record has the id
var ErrNotFound = errors.New("record not found")

// Collection stores JSON records of one kind keyed by id, in insertion order
type Collection[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	Put(ctx context.Context, id string, record *T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*T, error)
}

// Record kinds
const (
	KindConversations = "conversations"
	KindSpeakers      = "speakers"
)
