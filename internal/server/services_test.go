package server

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/dmitrijs2005/objcatalog/internal/cryptox"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/config"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/memory"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestNewServices_AdapterResolvesThroughRegistry(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.S3Endpoint = "http://default.local:9000"
	cfg.S3Bucket = "defaultbucket"

	repos := memory.NewManager()
	sealed, err := cryptox.SealSecret("sk", cfg.BucketSecretPassphrase)
	require.NoError(t, err)
	_, err = repos.Buckets(nil).Create(context.Background(), &models.Bucket{
		BucketID: "b-1", Bucket: "team", Endpoint: "http://team.local:9000", Region: "us-east-1",
		AccessKeyID: "ak", SecretAccessKey: sealed, Active: true,
	})
	require.NoError(t, err)

	s := NewServices(db, repos, cfg, storage.AWSClientFactory{}, logging.NewNopLogger())
	require.NotNil(t, s.Catalog)
	require.NotNil(t, s.Tags)
	require.NotNil(t, s.Permissions)
	require.NotNil(t, s.Users)

	u, err := s.Store.PresignURL(context.Background(), storage.PresignInput{BucketID: "b-1", Key: "a.txt"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://team.local:9000/team/a.txt?"), u)

	u, err = s.Store.PresignURL(context.Background(), storage.PresignInput{Key: "a.txt"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://default.local:9000/defaultbucket/a.txt?"), u)
	assert.Contains(t, u, "X-Amz-Expires=300")
}
