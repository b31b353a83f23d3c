package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// CreateAudioUpload records an uploaded recording and links it to its
// question.
func (s *Store) CreateAudioUpload(ctx context.Context, upload *AudioUpload) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(upload).Error; err != nil {
			return fmt.Errorf("insert audio upload: %w", err)
		}
		err := tx.Model(&ModuleQuestion{}).
			Where("id = ?", upload.QuestionID).
			Update("audio_upload_id", upload.ID).Error
		if err != nil {
			return fmt.Errorf("link audio upload: %w", err)
		}
		return nil
	})
}

// GetAudioUpload loads an upload by ID.
func (s *Store) GetAudioUpload(ctx context.Context, uploadID string) (*AudioUpload, error) {
	var upload AudioUpload
	if err := s.conn(ctx).First(&upload, "id = ?", uploadID).Error; err != nil {
		return nil, mapNotFound(err, ErrUploadNotFound)
	}
	return &upload, nil
}

// SetTranscript stores the transcription of an upload.
func (s *Store) SetTranscript(ctx context.Context, uploadID, transcript string) error {
	res := s.conn(ctx).Model(&AudioUpload{}).
		Where("id = ?", uploadID).
		Update("transcript", transcript)
	if res.Error != nil {
		return fmt.Errorf("update transcript: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUploadNotFound
	}
	return nil
}

// AudioUploadKeys returns the storage key of every recorded upload.
func (s *Store) AudioUploadKeys(ctx context.Context) (map[string]bool, error) {
	var keys []string
	if err := s.conn(ctx).Model(&AudioUpload{}).Pluck("storage_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("query upload keys: %w", err)
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set, nil
}
