package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/quire/pkg/adapters/sqlite"
	"github.com/aretw0/quire/pkg/domain"
	"github.com/aretw0/quire/pkg/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.StateStore = (*sqlite.Store)(nil)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "data", "quire.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, openStore(t))
}

func TestSQLiteStore_ListByStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for id, status := range map[string]domain.ExecutionStatus{
		"b": domain.StatusPaused,
		"a": domain.StatusPaused,
		"c": domain.StatusActive,
	} {
		st := domain.NewState(id, "survey", domain.NewAssessmentResult("survey", "", uuid.New()))
		st.Status = status
		require.NoError(t, store.Save(ctx, id, st))
	}

	paused, err := store.ListByStatus(ctx, domain.StatusPaused)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, paused)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, all)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quire.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	st := domain.NewState("s1", "survey", domain.NewAssessmentResult("survey", "", uuid.New()))
	require.NoError(t, store.Save(ctx, "s1", st))
	require.NoError(t, store.Close())

	store, err = sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, st.Result.TaskRunUUID, loaded.Result.TaskRunUUID)
}

func TestSQLiteStore_CorruptSnapshot(t *testing.T) {
	store := openStore(t)
	_, err := store.DB().Exec(`INSERT INTO sessions VALUES ('bad', 'survey', 'active', '{"status":"active"}', 0)`)
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrMalformedSnapshot)
}
