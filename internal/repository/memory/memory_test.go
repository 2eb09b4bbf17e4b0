package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/covenant/internal/models"
	"github.com/stwalsh4118/covenant/internal/repository"
	"github.com/stwalsh4118/covenant/internal/repository/repositorytest"
)

func TestStore(t *testing.T) {
	repositorytest.Run(t, func(*testing.T) *repository.Store { return NewStore() })
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Properties.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	p := repositorytest.NewProperty(t, s, "1 Copy St", 1000)

	got, err := s.Properties.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	got.CombinedScore = 0

	again, err := s.Properties.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, again.CombinedScore)
}

func TestStore_ViolationRequiresProperty(t *testing.T) {
	s := NewStore()
	err := s.Violations.Create(context.Background(), &models.Violation{ID: uuid.New(), PropertyID: uuid.New()})
	assert.Error(t, err)
}
