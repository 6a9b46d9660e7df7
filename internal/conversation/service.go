// Package conversation owns conversation records, their folders on disk and
// the per-stage run logs.
package conversation

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/alignment"
	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

// Store persists conversation records
type Store = storage.Collection[types.Conversation]

// Service serializes every read-modify-write of a record per conversation id
type Service struct {
	store Store
	files *storage.LocalStorage
	locks *KeyedMutex
	log   zerolog.Logger
	now   func() time.Time
}

// NewService creates a conversation service
func NewService(store Store, files *storage.LocalStorage, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		files: files,
		locks: NewKeyedMutex(),
		log:   log.With().Str("component", "conversation").Logger(),
		now:   time.Now,
	}
}

// Files is the local artifact storage
func (s *Service) Files() *storage.LocalStorage {
	return s.files
}

func (s *Service) timestamp() float64 {
	return float64(s.now().UnixNano()) / 1e9
}

// IDFromName derives the default conversation id from its name
func IDFromName(name string) string {
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}

// Paths resolves the artifact paths of conv
func (s *Service) Paths(conv *types.Conversation) Paths {
	return Paths{ID: conv.ID, Dir: s.files.ConversationDir(conv.ID, conv.Name)}
}

func (s *Service) newRecord(id, name string) *types.Conversation {
	conv := &types.Conversation{
		ID:          id,
		Name:        name,
		DateCreated: s.timestamp(),
	}
	conv.Normalize()
	return conv
}

// get reads a record without taking the lock
func (s *Service) get(ctx context.Context, id string) (*types.Conversation, error) {
	conv, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.ConversationNotFound()
	}
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read conversation.", err)
	}
	conv.Normalize()
	return conv, nil
}

func (s *Service) put(ctx context.Context, conv *types.Conversation) error {
	if err := s.store.Put(ctx, conv.ID, conv); err != nil {
		return apperr.Internal("ERR_STORAGE", "Failed to save conversation.", err)
	}
	return nil
}

// Get returns one conversation
func (s *Service) Get(ctx context.Context, id string) (*types.Conversation, error) {
	return s.get(ctx, id)
}

// List returns every conversation in creation order
func (s *Service) List(ctx context.Context) ([]*types.Conversation, error) {
	convs, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to list conversations.", err)
	}
	for _, c := range convs {
		c.Normalize()
	}
	return convs, nil
}

// Mutate applies fn to the stored record under the conversation lock and
// persists the result. A non-nil error from fn aborts without saving.
func (s *Service) Mutate(ctx context.Context, id string, fn func(*types.Conversation) error) (*types.Conversation, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	conv, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(conv); err != nil {
		return nil, err
	}
	if err := s.put(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Initialize returns the conversation with convID, creating it and its folder
// if needed. An empty convID defaults to the md5 of name.
func (s *Service) Initialize(ctx context.Context, name, convID string) (*types.Conversation, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("ERR_MISSING_NAME", "Conversation name is required.")
	}
	if convID == "" {
		convID = IDFromName(name)
	}

	unlock := s.locks.Lock(convID)
	defer unlock()

	if conv, err := s.get(ctx, convID); err == nil {
		return conv, nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	conv := s.newRecord(convID, name)
	if err := s.files.EnsureDir(s.Paths(conv).Dir); err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to create conversation folder.", err)
	}
	if err := s.put(ctx, conv); err != nil {
		return nil, err
	}

	s.log.Info().Str("conversation_id", convID).Str("name", name).Msg("Conversation initialized")
	return conv, nil
}

// CreateInput is the body of an explicit create
type CreateInput struct {
	ID          string `json:"id" form:"id" validate:"required"`
	Name        string `json:"name" form:"name" validate:"required"`
	Description string `json:"description" form:"description"`
	Speakers    string `json:"speakers" form:"speakers"`
	Length      string `json:"length" form:"length"`
}

// Create stores a new conversation. An existing id is rejected.
func (s *Service) Create(ctx context.Context, in CreateInput) (*types.Conversation, error) {
	var length float64
	if l := strings.TrimSpace(in.Length); l != "" {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil || v < 0 {
			return nil, apperr.Validation("ERR_INVALID_LENGTH", "Length must be a non-negative number of seconds.")
		}
		length = v
	}

	unlock := s.locks.Lock(in.ID)
	defer unlock()

	if _, err := s.get(ctx, in.ID); err == nil {
		return nil, apperr.Validation("ERR_CONVERSATION_EXISTS", "Conversation with this ID already exists.")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	conv := s.newRecord(in.ID, in.Name)
	conv.Description = in.Description
	conv.Speakers = alignment.SplitNames(in.Speakers)
	conv.Length = types.Seconds(length)

	if err := s.files.EnsureDir(s.Paths(conv).Dir); err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to create conversation folder.", err)
	}
	if err := s.put(ctx, conv); err != nil {
		return nil, err
	}

	s.log.Info().Str("conversation_id", conv.ID).Msg("Conversation created")
	return conv, nil
}

// UpdateSpeakers replaces the speaker names with the de-duplicated comma list
func (s *Service) UpdateSpeakers(ctx context.Context, id, raw string) (*types.Conversation, error) {
	names := alignment.UniqueNames(raw)
	return s.Mutate(ctx, id, func(c *types.Conversation) error {
		c.Speakers = names
		c.States.SpeakerAssignment = len(names) > 0
		return nil
	})
}

// AssignSpeakers replaces the speaker names keeping the given order
func (s *Service) AssignSpeakers(ctx context.Context, id, raw string) (*types.Conversation, error) {
	names := alignment.SplitNames(raw)
	return s.Mutate(ctx, id, func(c *types.Conversation) error {
		c.Speakers = names
		c.States.SpeakerAssignment = len(names) > 0
		return nil
	})
}

// SetAudio marks the audio as available with the probed length
func (s *Service) SetAudio(ctx context.Context, id string, length float64) (*types.Conversation, error) {
	return s.Mutate(ctx, id, func(c *types.Conversation) error {
		c.States.AudioAvailable = true
		c.Length = types.Seconds(length)
		return nil
	})
}

// SetFlag applies fn to the stage flags of a conversation
func (s *Service) SetFlag(ctx context.Context, id string, fn func(*types.States)) (*types.Conversation, error) {
	return s.Mutate(ctx, id, func(c *types.Conversation) error {
		fn(&c.States)
		return nil
	})
}

// Delete removes the record and the conversation folder
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	conv, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.Internal("ERR_STORAGE", "Failed to delete conversation.", err)
	}
	if err := s.files.RemoveDir(s.Paths(conv).Dir); err != nil {
		return apperr.Internal("ERR_STORAGE", "Failed to delete conversation folder.", err)
	}

	s.log.Info().Str("conversation_id", id).Msg("Conversation deleted")
	return nil
}
