package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/codebuildervaibhav/conversate/internal/storage"
	"github.com/codebuildervaibhav/conversate/internal/types"
)

// ImportLegacy copies records from a conversations.json array into the store.
// Records already in the store are left untouched. A missing file imports
// nothing.
func (s *Service) ImportLegacy(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	imported := 0
	for i, msg := range raw {
		var conv types.Conversation
		if err := json.Unmarshal(msg, &conv); err != nil {
			s.log.Warn().Err(err).Int("index", i).Msg("Skipping unreadable legacy conversation")
			continue
		}
		if conv.ID == "" {
			continue
		}

		unlock := s.locks.Lock(conv.ID)
		_, err := s.store.Get(ctx, conv.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			conv.Normalize()
			err = s.store.Put(ctx, conv.ID, &conv)
			if err == nil {
				imported++
			}
		case err == nil:
			// already migrated
		}
		unlock()

		if err != nil {
			return imported, fmt.Errorf("failed to import conversation %s: %w", conv.ID, err)
		}
	}

	if imported > 0 {
		s.log.Info().Int("count", imported).Str("file", path).Msg("Imported legacy conversations")
	}
	return imported, nil
}
