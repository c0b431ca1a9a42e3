package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMongoDb(t *testing.T) {
	t.Setenv("MONGO_URI", "")

	client, err := NewMongoDb("127.0.0.1", "27017", "app", "secret", "autopost")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Disconnect(context.Background()))
}

func TestNewPostgreSQLDB(t *testing.T) {
	// No database runs in the test environment; only a clean failure or a
	// usable handle is acceptable.
	db, err := NewPostgreSQLDB()
	if err != nil {
		assert.Nil(t, db)
		t.Logf("connection failed in test env: %v", err)
		return
	}
	defer db.Close()
	assert.NoError(t, db.Ping())
}
