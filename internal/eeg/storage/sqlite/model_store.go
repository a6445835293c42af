package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yelabb/phantomspell/internal/eeg/l4decode"
)

// ModelStore provides persistence for trained discriminant models.
type ModelStore struct {
	db *sql.DB
}

// NewModelStore creates a new ModelStore.
func NewModelStore(db *sql.DB) *ModelStore {
	return &ModelStore{db: db}
}

// Save persists a trained model. The full model is stored as JSON so the
// schema never has to chase the feature layout; accuracy and sample count
// are duplicated into columns for report queries.
func (s *ModelStore) Save(m *l4decode.Model) error {
	data, err := m.EncodeJSON()
	if err != nil {
		return err
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO lda_models (model_id, model_json, training_accuracy, n_samples, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			m.ID, string(data), m.TrainingAccuracy, m.NSamples,
			m.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// Load returns the model with the given ID, or nil if it does not exist.
func (s *ModelStore) Load(modelID string) (*l4decode.Model, error) {
	var raw string
	err := s.db.QueryRow(
		"SELECT model_json FROM lda_models WHERE model_id = ?", modelID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelID, err)
	}
	return l4decode.DecodeModelJSON([]byte(raw))
}

// Latest returns the most recently saved model, or nil if none exists.
// The speller loads this at startup so a trained session survives restarts.
func (s *ModelStore) Latest() (*l4decode.Model, error) {
	var raw string
	err := s.db.QueryRow(
		"SELECT model_json FROM lda_models ORDER BY created_at DESC, rowid DESC LIMIT 1",
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest model: %w", err)
	}
	return l4decode.DecodeModelJSON([]byte(raw))
}

// ModelSummary is a row-level view of a stored model without the weights.
type ModelSummary struct {
	ModelID          string  `json:"model_id"`
	TrainingAccuracy float64 `json:"training_accuracy"`
	NSamples         int     `json:"n_samples"`
	CreatedAt        string  `json:"created_at"`
}

// List returns summaries of all stored models, newest first.
func (s *ModelStore) List() ([]ModelSummary, error) {
	rows, err := s.db.Query(`
		SELECT model_id, training_accuracy, n_samples, created_at
		FROM lda_models
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var summaries []ModelSummary
	for rows.Next() {
		var m ModelSummary
		if err := rows.Scan(&m.ModelID, &m.TrainingAccuracy, &m.NSamples, &m.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, m)
	}
	return summaries, rows.Err()
}
