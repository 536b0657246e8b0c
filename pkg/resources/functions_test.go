package resources

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	cfg := &Config{DBDriver: DriverSQLite, DBPath: filepath.Join(t.TempDir(), "events.db")}

	db, stopFn, err := OpenSQLite(context.Background(), cfg)
	require.NoError(t, err)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	stopFn(context.Background(), time.Second)

	require.Error(t, db.Ping())
}

func TestCreateDatabaseConnectionPool_BadURL(t *testing.T) {
	t.Parallel()

	cfg := &Config{DBUser: "postgres", DBHost: "localhost", DBPort: "not-a-port", DBName: "events"}

	pool, stopFn, err := CreateDatabaseConnectionPool(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.NotNil(t, stopFn)
}

type slowClosable struct {
	release chan struct{}
	closed  chan struct{}
}

func (c *slowClosable) Close() {
	<-c.release
	close(c.closed)
}

func TestCloseFn(t *testing.T) {
	t.Parallel()

	t.Run("closes", func(t *testing.T) {
		t.Parallel()

		closable := &slowClosable{release: make(chan struct{}), closed: make(chan struct{})}
		close(closable.release)

		closeFn("test", closable)(context.Background(), time.Second)

		select {
		case <-closable.closed:
		default:
			t.Fatal("closable was not closed")
		}
	})

	t.Run("gives up after the timeout", func(t *testing.T) {
		t.Parallel()

		closable := &slowClosable{release: make(chan struct{}), closed: make(chan struct{})}
		defer close(closable.release)

		start := time.Now()
		closeFn("test", closable)(context.Background(), 20*time.Millisecond)

		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestNewHttpServer(t *testing.T) {
	t.Parallel()

	handler := http.NewServeMux()
	server := NewHttpServer("localhost", "8080", handler)

	assert.Equal(t, "localhost:8080", server.Addr)
	assert.Equal(t, handler, server.Handler)
	assert.Positive(t, server.ReadHeaderTimeout)
}
