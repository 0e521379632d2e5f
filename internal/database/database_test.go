package database

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlhmz/hubspot-booking-api/internal/models"
)

func newTestRepo(t *testing.T) *DeploymentRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := New(filepath.Join(t.TempDir(), "nested", "deployments.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewDeploymentRepository(db)
}

func TestDeploymentRepository_CRUD(t *testing.T) {
	repo := newTestRepo(t)

	d := &models.Deployment{
		ID:            uuid.New().String(),
		Image:         "docker.io/library/hubspot-booking-api:latest",
		ContainerName: "hubspot-booking-api",
		HostPort:      8080,
		ContainerPort: 8080,
		Status:        models.StatusCreating,
	}
	require.NoError(t, repo.Create(d))

	got, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Image, got.Image)
	assert.Nil(t, got.ExitCode)

	code := int64(0)
	now := time.Now()
	got.Status = models.StatusExited
	got.ExitCode = &code
	got.FinishedAt = &now
	require.NoError(t, repo.Update(got))

	again, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExited, again.Status)
	require.NotNil(t, again.ExitCode)
	assert.Equal(t, int64(0), *again.ExitCode)
}

func TestDeploymentRepository_FindByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeploymentRepository_FindAll_NewestFirst(t *testing.T) {
	repo := newTestRepo(t)

	older := &models.Deployment{ID: "older", Image: "a", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.Deployment{ID: "newer", Image: "b", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(older))
	require.NoError(t, repo.Create(newer))

	all, err := repo.FindAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "newer", all[0].ID)
	assert.Equal(t, "older", all[1].ID)
}
