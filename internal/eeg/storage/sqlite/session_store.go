package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TrialRecord is a persisted free-spelling trial outcome.
type TrialRecord struct {
	TrialID      string  `json:"trial_id"`
	SessionID    string  `json:"session_id"`
	ModelID      string  `json:"model_id,omitempty"`
	PredictedRow int     `json:"predicted_row"`
	PredictedCol int     `json:"predicted_col"`
	Confidence   float64 `json:"confidence"`
	LatencyMs    float64 `json:"latency_ms"`
	EpochCount   int     `json:"epoch_count"`
	CreatedAt    int64   `json:"created_at"`
}

// TrainingRunRecord is a persisted training run, successful or not.
type TrainingRunRecord struct {
	RunID      string  `json:"run_id"`
	SessionID  string  `json:"session_id"`
	ModelID    string  `json:"model_id,omitempty"`
	NSamples   int     `json:"n_samples"`
	NTarget    int     `json:"n_target"`
	NNonTarget int     `json:"n_nontarget"`
	Accuracy   float64 `json:"accuracy"`
	DurationMs float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
	CreatedAt  int64   `json:"created_at"`
}

// SessionStore provides persistence for trial outcomes and training runs.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// InsertTrial persists a trial outcome. If TrialID is empty, a UUID is
// generated.
func (s *SessionStore) InsertTrial(rec *TrialRecord) error {
	if rec.TrialID == "" {
		rec.TrialID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixNano()
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO trials (
				trial_id, session_id, model_id,
				predicted_row, predicted_col, confidence,
				latency_ms, epoch_count, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.TrialID, rec.SessionID, nullStr(rec.ModelID),
			rec.PredictedRow, rec.PredictedCol, rec.Confidence,
			rec.LatencyMs, rec.EpochCount, rec.CreatedAt,
		)
		return err
	})
}

// InsertTrainingRun persists a training run record. If RunID is empty, a
// UUID is generated.
func (s *SessionStore) InsertTrainingRun(rec *TrainingRunRecord) error {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixNano()
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO training_runs (
				run_id, session_id, model_id,
				n_samples, n_target, n_nontarget,
				accuracy, duration_ms, error, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.SessionID, nullStr(rec.ModelID),
			rec.NSamples, rec.NTarget, rec.NNonTarget,
			rec.Accuracy, rec.DurationMs, nullStr(rec.Error), rec.CreatedAt,
		)
		return err
	})
}

// ListTrials returns all trials for a session, oldest first.
func (s *SessionStore) ListTrials(sessionID string) ([]*TrialRecord, error) {
	rows, err := s.db.Query(`
		SELECT trial_id, session_id, model_id,
		       predicted_row, predicted_col, confidence,
		       latency_ms, epoch_count, created_at
		FROM trials
		WHERE session_id = ?
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var recs []*TrialRecord
	for rows.Next() {
		var rec TrialRecord
		var modelID sql.NullString
		err := rows.Scan(
			&rec.TrialID, &rec.SessionID, &modelID,
			&rec.PredictedRow, &rec.PredictedCol, &rec.Confidence,
			&rec.LatencyMs, &rec.EpochCount, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.ModelID = scanNullStr(modelID)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// ListTrainingRuns returns all training runs for a session, oldest first.
func (s *SessionStore) ListTrainingRuns(sessionID string) ([]*TrainingRunRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, session_id, model_id,
		       n_samples, n_target, n_nontarget,
		       accuracy, duration_ms, error, created_at
		FROM training_runs
		WHERE session_id = ?
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query training runs: %w", err)
	}
	defer rows.Close()

	var recs []*TrainingRunRecord
	for rows.Next() {
		var rec TrainingRunRecord
		var modelID, runErr sql.NullString
		err := rows.Scan(
			&rec.RunID, &rec.SessionID, &modelID,
			&rec.NSamples, &rec.NTarget, &rec.NNonTarget,
			&rec.Accuracy, &rec.DurationMs, &runErr, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.ModelID = scanNullStr(modelID)
		rec.Error = scanNullStr(runErr)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// Sessions returns the distinct session IDs present in the trials and
// training_runs tables, newest activity first.
func (s *SessionStore) Sessions() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT session_id FROM (
			SELECT session_id, MAX(created_at) AS last_seen FROM (
				SELECT session_id, created_at FROM trials
				UNION ALL
				SELECT session_id, created_at FROM training_runs
			) GROUP BY session_id
		) ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
