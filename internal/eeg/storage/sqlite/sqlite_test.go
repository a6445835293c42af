package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yelabb/phantomspell/internal/db"
	"github.com/yelabb/phantomspell/internal/eeg/l4decode"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	migrations, err := db.Migrations()
	require.NoError(t, err)
	require.NoError(t, database.MigrateUp(migrations))
	return database.DB
}

func TestModelStoreRoundTrip(t *testing.T) {
	store := NewModelStore(openTestDB(t))

	model := &l4decode.Model{
		ID:               "model-a",
		Weights:          []float32{0.5, -1.25, 2},
		Bias:             0.75,
		FeatureMean:      []float32{0.1, 0.2, 0.3},
		FeatureStd:       []float32{1, 1, 2},
		TrainingAccuracy: 0.875,
		NSamples:         40,
		CreatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(model))

	loaded, err := store.Load("model-a")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	if diff := cmp.Diff(model, loaded); diff != "" {
		t.Errorf("loaded model mismatch (-want +got):\n%s", diff)
	}
}

func TestModelStoreLoadMissing(t *testing.T) {
	store := NewModelStore(openTestDB(t))

	loaded, err := store.Load("no-such-model")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestModelStoreLatest(t *testing.T) {
	store := NewModelStore(openTestDB(t))

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest, "empty store should have no latest model")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"model-old", "model-mid", "model-new"} {
		require.NoError(t, store.Save(&l4decode.Model{
			ID:        id,
			Weights:   []float32{1},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	latest, err = store.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "model-new", latest.ID)

	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "model-new", summaries[0].ModelID)
}

func TestSessionStoreTrials(t *testing.T) {
	store := NewSessionStore(openTestDB(t))

	rec := &TrialRecord{
		SessionID:    "session-1",
		ModelID:      "model-a",
		PredictedRow: 2,
		PredictedCol: 4,
		Confidence:   0.62,
		LatencyMs:    18.5,
		EpochCount:   120,
	}
	require.NoError(t, store.InsertTrial(rec))
	assert.NotEmpty(t, rec.TrialID, "insert should assign an ID")
	assert.NotZero(t, rec.CreatedAt)

	require.NoError(t, store.InsertTrial(&TrialRecord{
		SessionID:    "session-1",
		PredictedRow: 1,
		PredictedCol: 1,
		CreatedAt:    rec.CreatedAt + 1,
	}))

	trials, err := store.ListTrials("session-1")
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, rec.TrialID, trials[0].TrialID)
	assert.Equal(t, 2, trials[0].PredictedRow)
	assert.Equal(t, 4, trials[0].PredictedCol)
	assert.Equal(t, "model-a", trials[0].ModelID)
	assert.Equal(t, "", trials[1].ModelID, "missing model_id should scan as empty")

	other, err := store.ListTrials("session-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSessionStoreTrainingRuns(t *testing.T) {
	store := NewSessionStore(openTestDB(t))

	ok := &TrainingRunRecord{
		SessionID:  "session-1",
		ModelID:    "model-a",
		NSamples:   40,
		NTarget:    20,
		NNonTarget: 20,
		Accuracy:   0.9,
		DurationMs: 310,
	}
	require.NoError(t, store.InsertTrainingRun(ok))

	failed := &TrainingRunRecord{
		SessionID: "session-1",
		NSamples:  4,
		Error:     "insufficient training data",
		CreatedAt: ok.CreatedAt + 1,
	}
	require.NoError(t, store.InsertTrainingRun(failed))

	runs, err := store.ListTrainingRuns("session-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "model-a", runs[0].ModelID)
	assert.InDelta(t, 0.9, runs[0].Accuracy, 1e-9)
	assert.Equal(t, "insufficient training data", runs[1].Error)
	assert.Equal(t, "", runs[1].ModelID)
}

func TestSessionsListsDistinctSessions(t *testing.T) {
	store := NewSessionStore(openTestDB(t))

	now := time.Now().UnixNano()
	require.NoError(t, store.InsertTrial(&TrialRecord{SessionID: "older", CreatedAt: now - 10}))
	require.NoError(t, store.InsertTrainingRun(&TrainingRunRecord{SessionID: "newer", CreatedAt: now}))
	require.NoError(t, store.InsertTrial(&TrialRecord{SessionID: "older", CreatedAt: now - 5}))

	ids, err := store.Sessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids)
}
