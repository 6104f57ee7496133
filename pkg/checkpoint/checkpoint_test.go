package checkpoint

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igcrawler/pkg/feed"
	"igcrawler/pkg/logger"
)

func newTestManager(t *testing.T, handle string) *Manager {
	t.Helper()
	m, err := NewManagerAt(t.TempDir(), handle)
	require.NoError(t, err)
	m.logger = logger.NewNopLogger()
	return m
}

func TestNewManagerUsesDataDirectory(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is linux only")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	m, err := NewManager("@NatGeo")
	require.NoError(t, err)
	assert.Equal(t, "natgeo.checkpoint.json", filepath.Base(m.Path()))
	assert.Equal(t, "checkpoints", filepath.Base(filepath.Dir(m.Path())))
}

func TestNewManagerAtRejectsEmptyHandle(t *testing.T) {
	_, err := NewManagerAt(t.TempDir(), " @ ")
	assert.Error(t, err)
}

func TestCreateLoadRoundTrip(t *testing.T) {
	m := newTestManager(t, "natgeo")

	assert.False(t, m.Exists())
	cp, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, cp)

	cp, err = m.Create("NatGeo")
	require.NoError(t, err)
	assert.True(t, m.Exists())
	assert.Equal(t, "natgeo", cp.Handle)
	assert.Equal(t, version, cp.Version)

	require.NoError(t, m.RecordRound(cp, "run-1", 3, []string{"k1", "k2", "k1"}))
	require.NoError(t, m.RecordDownload(cp, "abc", "abc.jpg"))

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.TotalPersisted)
	assert.Equal(t, 1, loaded.TotalDownloaded)
	assert.Equal(t, "run-1", loaded.LastRunID)
	assert.Equal(t, 3, loaded.LastRound)
	assert.True(t, loaded.IsPersisted("k1"))
	assert.False(t, loaded.IsPersisted("k3"))
	assert.True(t, loaded.IsDownloaded("abc"))
}

func TestRecordRoundIgnoresKnownKeys(t *testing.T) {
	m := newTestManager(t, "natgeo")
	cp, err := m.Create("natgeo")
	require.NoError(t, err)

	require.NoError(t, m.RecordRound(cp, "run-1", 1, []string{"k1"}))
	require.NoError(t, m.RecordRound(cp, "run-2", 1, []string{"k1", "k2"}))
	assert.Equal(t, 2, cp.TotalPersisted)
	assert.Equal(t, "run-2", cp.LastRunID)
}

func TestBeginFinish(t *testing.T) {
	m := newTestManager(t, "natgeo")
	cp, err := m.Create("natgeo")
	require.NoError(t, err)

	require.NoError(t, m.Begin(cp))
	require.NoError(t, m.RecordRound(cp, "run-7", 1, []string{"k1"}))
	loaded, err := m.Load()
	require.NoError(t, err)
	assert.True(t, loaded.InProgress)
	assert.Equal(t, "run-7", loaded.LastRunID)

	require.NoError(t, m.Finish(cp))
	loaded, err = m.Load()
	require.NoError(t, err)
	assert.False(t, loaded.InProgress)
}

func TestUnpersisted(t *testing.T) {
	m := newTestManager(t, "natgeo")
	cp, err := m.Create("natgeo")
	require.NoError(t, err)
	require.NoError(t, m.RecordRound(cp, "run-1", 1, []string{"k1"}))

	items := []feed.Item{{Key: "k1"}, {Key: "k2"}, {Key: "k3"}}
	fresh := m.Unpersisted(cp, items)
	require.Len(t, fresh, 2)
	assert.Equal(t, "k2", fresh[0].Key)
	assert.Equal(t, "k3", fresh[1].Key)
}

func TestRecordDownloadConcurrent(t *testing.T) {
	m := newTestManager(t, "natgeo")
	cp, err := m.Create("natgeo")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			assert.NoError(t, m.RecordDownload(cp, id, id+".jpg"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, cp.TotalDownloaded)
	assert.True(t, m.IsDownloaded(cp, "c"))
}

func TestLoadCorrupt(t *testing.T) {
	m := newTestManager(t, "natgeo")
	require.NoError(t, os.WriteFile(m.Path(), []byte("{not json"), 0644))

	_, err := m.Load()
	assert.Error(t, err)
}

func TestLoadFillsMissingMaps(t *testing.T) {
	m := newTestManager(t, "natgeo")
	require.NoError(t, os.WriteFile(m.Path(), []byte(`{"handle":"natgeo","version":2}`), 0644))

	cp, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, cp.PersistedKeys)
	require.NotNil(t, cp.DownloadedMedia)
	assert.False(t, cp.IsPersisted("x"))
}

func TestDeleteAndBackup(t *testing.T) {
	m := newTestManager(t, "natgeo")
	require.NoError(t, m.BackupCheckpoint())
	require.NoError(t, m.Delete())

	_, err := m.Create("natgeo")
	require.NoError(t, err)
	require.NoError(t, m.BackupCheckpoint())
	assert.FileExists(t, m.Path()+".backup")

	info, err := m.GetCheckpointInfo()
	require.NoError(t, err)
	assert.Equal(t, "natgeo", info["handle"])

	require.NoError(t, m.Delete())
	assert.False(t, m.Exists())

	info, err = m.GetCheckpointInfo()
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestUnpersistedReturnsDetailUpgrades(t *testing.T) {
	m := newTestManager(t, "natgeo")
	cp, err := m.Create("natgeo")
	require.NoError(t, err)

	// an earlier summary crawl
	require.NoError(t, m.RecordItems(cp, "run-1", 1, []feed.Item{
		{Key: "k1", Detail: feed.DetailSummary},
		{Key: "k2", Detail: feed.DetailComplete},
	}))

	items := []feed.Item{
		{Key: "k1", Detail: feed.DetailComplete},
		{Key: "k2", Detail: feed.DetailComplete},
		{Key: "k3", Detail: feed.DetailUnavailable},
	}
	fresh := m.Unpersisted(cp, items)
	require.Len(t, fresh, 2)
	assert.Equal(t, "k1", fresh[0].Key)
	assert.Equal(t, "k3", fresh[1].Key)

	require.NoError(t, m.RecordItems(cp, "run-2", 1, fresh))
	assert.Equal(t, 3, cp.TotalPersisted)

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.True(t, loaded.IsComplete("k1"))
	assert.False(t, loaded.IsComplete("k3"))
	assert.Empty(t, m.Unpersisted(loaded, items))
}
