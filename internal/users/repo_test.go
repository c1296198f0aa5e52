package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/learnsphere/learnsphere-backend/pkg/db/models"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT UNIQUE,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  phone TEXT,
  role TEXT NOT NULL DEFAULT 'student',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_seen_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	// The shared in-memory database outlives individual tests.
	require.NoError(t, db.Exec("DELETE FROM users").Error)
	return db
}

func newUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		ID:        uuid.New(),
		Email:     &email,
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestRepositoryFindByID(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)

	user := newUser(t, db, "ada@example.com")

	found, err := repo.FindByID(context.Background(), user.ID.String())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	require.NotNil(t, found.Email)
	assert.Equal(t, "ada@example.com", *found.Email)
}

func TestRepositoryFindByIDMissReturnsNil(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)

	found, err := repo.FindByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepositoryFindByIDMalformedReturnsNil(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)

	found, err := repo.FindByID(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepositoryFindByEmail(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)

	user := newUser(t, db, "grace@example.com")

	found, err := repo.FindByEmail(context.Background(), "grace@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
