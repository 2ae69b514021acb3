package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/reckon/internal/database"
)

// stubStore keeps uploaded objects in memory.
type stubStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
	deleted []string
}

func newStubStore() *stubStore {
	return &stubStore{uploads: make(map[string][]byte)}
}

func (s *stubStore) Upload(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads[key] = data
	return nil
}

func (s *stubStore) List(_ context.Context, prefix string) ([]types.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var objects []types.Object
	for key, data := range s.uploads {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, types.Object{
				Key:  aws.String(key),
				Size: aws.Int64(int64(len(data))),
			})
		}
	}
	return objects, nil
}

func (s *stubStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.uploads, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Broadcast(event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func TestCreateAndUpload(t *testing.T) {
	db := setupTestDB(t)
	store := newStubStore()
	notifier := &recordingNotifier{}
	dataDir := t.TempDir()

	service := NewService(db, store, notifier, dataDir, 30, testLogger())

	archive, err := service.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(archive, archivePrefix))
	assert.True(t, strings.HasSuffix(archive, ".tar.gz"))

	// The staging directory is cleaned up after the upload.
	_, err = os.Stat(filepath.Join(dataDir, "r2-staging"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, []string{"backup_completed"}, notifier.events)

	data, ok := store.uploads[archive]
	require.True(t, ok)
	files := extractArchive(t, data)
	require.Contains(t, files, "ledger.db")
	require.Contains(t, files, "backup-metadata.json")
	assert.NotEmpty(t, files["ledger.db"])

	var metadata Metadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 1)
	assert.Equal(t, "ledger", metadata.Databases[0].Name)
	assert.Equal(t, int64(len(files["ledger.db"])), metadata.Databases[0].SizeBytes)
	assert.True(t, strings.HasPrefix(metadata.Databases[0].Checksum, "sha256:"))
	assert.False(t, metadata.Timestamp.IsZero())
}

// extractArchive unpacks a tar.gz into a name -> contents map.
func extractArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gzipReader.Close()

	files := make(map[string][]byte)
	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		contents, err := io.ReadAll(tarReader)
		require.NoError(t, err)
		files[header.Name] = contents
	}
	return files
}

func TestParseArchiveTimestamp(t *testing.T) {
	timestamp, ok := parseArchiveTimestamp("reckon-backup-2026-01-08-143022.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 8, 14, 30, 22, 0, time.UTC), timestamp)

	_, ok = parseArchiveTimestamp("other-backup-2026-01-08-143022.tar.gz")
	assert.False(t, ok)

	_, ok = parseArchiveTimestamp("reckon-backup-2026-01-08-143022.zip")
	assert.False(t, ok)

	_, ok = parseArchiveTimestamp("reckon-backup-notadate.tar.gz")
	assert.False(t, ok)
}

func TestListBackups_SortsAndSkipsUnparseable(t *testing.T) {
	store := newStubStore()
	store.uploads["reckon-backup-2024-01-02-120000.tar.gz"] = []byte("old")
	store.uploads["reckon-backup-2024-06-02-120000.tar.gz"] = []byte("newer")
	store.uploads["reckon-backup-garbage.tar.gz"] = []byte("skip")

	service := NewService(nil, store, nil, "", 30, testLogger())

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "reckon-backup-2024-06-02-120000.tar.gz", backups[0].Filename)
	assert.Equal(t, "reckon-backup-2024-01-02-120000.tar.gz", backups[1].Filename)
	assert.Equal(t, int64(3), backups[1].SizeBytes)
	assert.Greater(t, backups[1].AgeHours, int64(0))
}

func TestSelectExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	day := func(daysAgo int) time.Time { return now.AddDate(0, 0, -daysAgo) }
	backups := []BackupInfo{
		{Filename: "a", Timestamp: day(1)},
		{Filename: "b", Timestamp: day(2)},
		{Filename: "c", Timestamp: day(100)},
		{Filename: "d", Timestamp: day(200)},
		{Filename: "e", Timestamp: day(300)},
	}

	assert.Equal(t, []string{"d", "e"}, selectExpired(backups, 150, now))

	// "c" is past the 30-day cutoff but survives as one of the newest three.
	assert.Equal(t, []string{"d", "e"}, selectExpired(backups, 30, now))

	// Retention 0 keeps everything.
	assert.Nil(t, selectExpired(backups, 0, now))

	// The newest three survive even when all are ancient.
	ancient := backups[:4]
	for i := range ancient {
		ancient[i].Timestamp = day(400 + i)
	}
	assert.Equal(t, []string{"d"}, selectExpired(ancient, 30, now))

	// Too few backups to rotate.
	assert.Nil(t, selectExpired(backups[:3], 30, now))
}

func TestRotateOldBackups(t *testing.T) {
	store := newStubStore()
	now := time.Now()
	name := func(daysAgo int) string {
		return archivePrefix + now.AddDate(0, 0, -daysAgo).Format(archiveTimeFmt) + ".tar.gz"
	}
	for _, daysAgo := range []int{1, 2, 3, 100, 200} {
		store.uploads[name(daysAgo)] = []byte("x")
	}

	service := NewService(nil, store, nil, "", 30, testLogger())

	require.NoError(t, service.RotateOldBackups(context.Background()))
	assert.ElementsMatch(t, []string{name(100), name(200)}, store.deleted)
	assert.Len(t, store.uploads, 3)
}

func TestRotateOldBackups_DisabledRetention(t *testing.T) {
	store := newStubStore()
	now := time.Now()
	for _, daysAgo := range []int{100, 200, 300, 400} {
		key := archivePrefix + now.AddDate(0, 0, -daysAgo).Format(archiveTimeFmt) + ".tar.gz"
		store.uploads[key] = []byte("x")
	}

	service := NewService(nil, store, nil, "", 0, testLogger())

	require.NoError(t, service.RotateOldBackups(context.Background()))
	assert.Empty(t, store.deleted)
}
