// Package speakers manages the known speakers and their avatars.
package speakers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/conversate/internal/apperr"
	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

// URLPrefix is where avatars are served
const URLPrefix = "avatars"

// Store persists speaker records
type Store = storage.Collection[types.Speaker]

// Input carries the form fields of an add or update
type Input struct {
	ID           string `form:"id"`
	Name         string `form:"name" validate:"required"`
	Color        string `form:"color" validate:"required"`
	PresetAvatar string `form:"presetAvatar"`
	CroppedArea  string `form:"croppedArea"`
	// Image is the uploaded avatar, nil when none was sent
	Image io.Reader `form:"-"`
}

// Service manages speakers
type Service struct {
	store Store
	files *storage.LocalStorage
	dir   string
	mu    sync.Mutex
	log   zerolog.Logger
}

// NewService creates a speaker service storing avatars in dir
func NewService(store Store, files *storage.LocalStorage, dir string, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		files: files,
		dir:   dir,
		log:   log.With().Str("component", "speakers").Logger(),
	}
}

func notFound() *apperr.Error {
	return apperr.NotFound("ERR_SPEAKER_NOT_FOUND", "Speaker not found.")
}

// avatarNames are the file names of a speaker's original and cropped avatar
func avatarNames(id, name string) (original, cropped string) {
	base := fmt.Sprintf("%s_%s", storage.SanitizeName(name), id)
	return base + "_original.png", base + "_cropped.png"
}

func avatarURL(file string) *string {
	u := path.Join(URLPrefix, file)
	return &u
}

// fileOf maps an avatar URL back to the file in the avatars dir
func (s *Service) fileOf(url *string) string {
	if url == nil || *url == "" {
		return ""
	}
	return filepath.Join(s.dir, filepath.Base(*url))
}

// List returns every speaker in insertion order
func (s *Service) List(ctx context.Context) ([]*types.Speaker, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to list speakers.", err)
	}
	return list, nil
}

// Get returns one speaker
func (s *Service) Get(ctx context.Context, id string) (*types.Speaker, error) {
	sp, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound()
	}
	if err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read speaker.", err)
	}
	return sp, nil
}

// Add creates a speaker. A preset avatar takes precedence over an uploaded
// image.
func (s *Service) Add(ctx context.Context, in Input) (*types.Speaker, error) {
	if in.ID == "" {
		return nil, apperr.Validation("ERR_MISSING_ID", "Speaker id is required.")
	}
	area, err := ParseCropArea(in.CroppedArea)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, in.ID); err == nil {
		return nil, apperr.Conflict("ERR_SPEAKER_EXISTS", "Speaker with this ID already exists.")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to read speaker.", err)
	}

	sp := &types.Speaker{ID: in.ID, Name: in.Name, Color: in.Color}
	if in.PresetAvatar != "" {
		sp.PresetAvatar = in.PresetAvatar
	} else if in.Image != nil {
		if err := s.writeAvatar(sp, in.Image, area); err != nil {
			return nil, err
		}
	}

	if err := s.store.Put(ctx, sp.ID, sp); err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to save speaker.", err)
	}
	s.log.Info().Str("speaker_id", sp.ID).Msg("Speaker added")
	return sp, nil
}

// Update changes name, color and avatar. Without a new image, a crop area
// re-crops the stored original and a rename moves the avatar files.
func (s *Service) Update(ctx context.Context, id string, in Input) (*types.Speaker, error) {
	area, err := ParseCropArea(in.CroppedArea)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sp.Name = in.Name
	sp.Color = in.Color

	switch {
	case in.PresetAvatar != "":
		sp.PresetAvatar = in.PresetAvatar
		sp.OriginalImageURL = nil
		sp.CroppedImageURL = nil
	case in.Image != nil:
		sp.PresetAvatar = ""
		if err := s.writeAvatar(sp, in.Image, area); err != nil {
			return nil, err
		}
	default:
		sp.PresetAvatar = ""
		if err := s.reworkAvatar(sp, area); err != nil {
			return nil, err
		}
	}

	if err := s.store.Put(ctx, sp.ID, sp); err != nil {
		return nil, apperr.Internal("ERR_STORAGE", "Failed to save speaker.", err)
	}
	return sp, nil
}

// Delete removes the speaker and its avatar files
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.Internal("ERR_STORAGE", "Failed to delete speaker.", err)
	}
	for _, f := range []string{s.fileOf(sp.OriginalImageURL), s.fileOf(sp.CroppedImageURL)} {
		if f != "" {
			os.Remove(f)
		}
	}
	return nil
}

// SaveCroppedAvatar stores an already cropped avatar for speakerID and
// returns its file name and URL.
func (s *Service) SaveCroppedAvatar(speakerID string, r io.Reader) (string, string, error) {
	if speakerID == "" {
		return "", "", apperr.Validation("ERR_MISSING_ID", "speaker_id is required.")
	}
	name := fmt.Sprintf("cropped_%s.png", storage.SanitizeName(speakerID))
	if _, err := s.files.WriteFrom(filepath.Join(s.dir, name), r); err != nil {
		return "", "", apperr.Internal("ERR_STORAGE", "Failed to save avatar.", err)
	}
	return name, *avatarURL(name), nil
}

// writeAvatar stores the upload as the original and a cropped copy
func (s *Service) writeAvatar(sp *types.Speaker, r io.Reader, area *CropArea) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return apperr.Validation("ERR_INVALID_IMAGE", "Failed to read uploaded image.").Wrap(err)
	}
	img, err := DecodeImage(bytes.NewReader(data))
	if err != nil {
		return err
	}

	original, cropped := avatarNames(sp.ID, sp.Name)
	if err := s.files.WriteFile(filepath.Join(s.dir, original), data); err != nil {
		return apperr.Internal("ERR_STORAGE", "Failed to save avatar.", err)
	}
	if err := s.writeCropped(filepath.Join(s.dir, cropped), img, area); err != nil {
		return err
	}
	sp.OriginalImageURL = avatarURL(original)
	sp.CroppedImageURL = avatarURL(cropped)
	return nil
}

// reworkAvatar re-crops the stored original when area is set and moves both
// files to names matching the current speaker name.
func (s *Service) reworkAvatar(sp *types.Speaker, area *CropArea) error {
	original, cropped := avatarNames(sp.ID, sp.Name)
	origPath := s.fileOf(sp.OriginalImageURL)

	if area != nil && origPath != "" && storage.Exists(origPath) {
		f, err := os.Open(origPath)
		if err != nil {
			return apperr.Internal("ERR_STORAGE", "Failed to read avatar.", err)
		}
		img, err := DecodeImage(f)
		f.Close()
		if err != nil {
			return err
		}
		if err := s.writeCropped(filepath.Join(s.dir, cropped), img, area); err != nil {
			return err
		}
		if old := s.fileOf(sp.CroppedImageURL); old != "" && old != filepath.Join(s.dir, cropped) {
			os.Remove(old)
		}
		sp.CroppedImageURL = avatarURL(cropped)
	}

	renames := []struct {
		url    **string
		target string
	}{
		{&sp.OriginalImageURL, original},
		{&sp.CroppedImageURL, cropped},
	}
	for _, rn := range renames {
		current := s.fileOf(*rn.url)
		target := filepath.Join(s.dir, rn.target)
		if current == "" || current == target || !storage.Exists(current) {
			continue
		}
		if err := os.Rename(current, target); err != nil {
			return apperr.Internal("ERR_STORAGE", "Failed to rename avatar.", err)
		}
		*rn.url = avatarURL(rn.target)
	}
	return nil
}

func (s *Service) writeCropped(dst string, img image.Image, area *CropArea) error {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, CropAvatar(img, area)); err != nil {
		return apperr.Internal("ERR_AVATAR", "Failed to crop avatar.", err)
	}
	if err := s.files.WriteFile(dst, buf.Bytes()); err != nil {
		return apperr.Internal("ERR_STORAGE", "Failed to save avatar.", err)
	}
	return nil
}
