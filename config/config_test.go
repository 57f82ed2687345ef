package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSources(t *testing.T) {
	t.Setenv("SOURCES", "rakuten, Yahoo")
	t.Setenv("SOURCE_RAKUTEN_STORE_ID", "101")
	t.Setenv("SOURCE_RAKUTEN_LABEL", "Rakuten Ichiba")
	t.Setenv("RETRY_BASE_DELAY", "2s")

	cfg := Load()

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, SourceConfig{
		Key: "rakuten", Marketplace: "rakuten", StoreID: "101", MediaName: "rakuten",
		LinkBy: LinkByManagementNumber, Label: "Rakuten Ichiba",
	}, cfg.Sources[0])
	assert.Equal(t, "yahoo", cfg.Sources[1].Key)
	assert.Equal(t, LinkByGroupID, cfg.Sources[1].LinkBy)
	assert.Equal(t, 2*time.Second, cfg.Engine.BaseDelay)
	assert.Equal(t, 100, cfg.Engine.ChunkSize)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := &Config{Engine: EngineConfig{ChunkSize: 100}}
	assert.Error(t, cfg.Validate())

	cfg.Sources = []SourceConfig{{Key: "x", StoreID: "1", LinkBy: "sku"}}
	assert.Error(t, cfg.Validate())

	cfg.Sources[0].LinkBy = LinkByGroupID
	assert.NoError(t, cfg.Validate())

	cfg.Engine.ChunkSize = 500
	assert.Error(t, cfg.Validate())
}
