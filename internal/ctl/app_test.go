package ctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuckets struct {
	created   []models.CreateBucketRequest
	createErr error
	list      []*models.Bucket
	deleted   []string
	deleteErr error
}

func (f *fakeBuckets) CreateBucket(_ context.Context, _ dbx.DBTX, req models.CreateBucketRequest, p models.Principal) (*models.Bucket, error) {
	if !p.System {
		return nil, errors.New("not system")
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &models.Bucket{BucketID: "b-new", Bucket: req.Bucket}, nil
}

func (f *fakeBuckets) ListBuckets(context.Context, models.Principal) ([]*models.Bucket, error) {
	return f.list, nil
}

func (f *fakeBuckets) DeleteBucket(_ context.Context, _ dbx.DBTX, id string, _ models.Principal) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type fakePerms struct {
	scope  models.PermissionScope
	grants []models.Grant
}

func (f *fakePerms) AddPermissions(_ context.Context, _ dbx.DBTX, scope models.PermissionScope, grants []models.Grant, _ models.Principal) (int, error) {
	f.scope, f.grants = scope, grants
	return len(grants), nil
}

type fakeSyncer struct {
	objectID         string
	bucketID, prefix string
}

func (f *fakeSyncer) SyncVersions(_ context.Context, _ dbx.DBTX, objectID string, _ models.Principal) (int, error) {
	f.objectID = objectID
	return 3, nil
}

func (f *fakeSyncer) ImportObjects(_ context.Context, _ dbx.DBTX, bucketID, prefix string, _ models.Principal) (int, error) {
	f.bucketID, f.prefix = bucketID, prefix
	return 4, nil
}

type fakePruner struct{ calls int }

func (f *fakePruner) PruneOrphanedMetadata(context.Context, dbx.DBTX) (int64, error) {
	f.calls++
	return 2, nil
}

type testApp struct {
	*App
	out      *bytes.Buffer
	buckets  *fakeBuckets
	perms    *fakePerms
	syncer   *fakeSyncer
	pruner   *fakePruner
	migrated int
}

func newTestApp(input string) *testApp {
	t := &testApp{
		out:     &bytes.Buffer{},
		buckets: &fakeBuckets{},
		perms:   &fakePerms{},
		syncer:  &fakeSyncer{},
		pruner:  &fakePruner{},
	}
	t.App = &App{
		out:      t.out,
		reader:   bufio.NewReader(strings.NewReader(input)),
		migrate:  func(context.Context) error { t.migrated++; return nil },
		buckets:  t.buckets,
		perms:    t.perms,
		catalog:  t.syncer,
		metadata: t.pruner,
	}
	return t
}

func stubSecret(t *testing.T, secret string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) { return []byte(secret), nil }
}

func TestRun_Migrate(t *testing.T) {
	a := newTestApp("")
	require.NoError(t, a.Run(context.Background(), []string{"-d", "postgres://x", "migrate"}))
	assert.Equal(t, 1, a.migrated)
	assert.Contains(t, a.out.String(), "migrations applied")
}

func TestRun_UnknownCommand(t *testing.T) {
	a := newTestApp("")
	err := a.Run(context.Background(), []string{"explode"})
	require.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, a.out.String(), "usage: catalogctl")

	require.ErrorIs(t, a.Run(context.Background(), nil), ErrUsage)
	require.NoError(t, a.Run(context.Background(), []string{"help"}))
}

func TestBucketAdd_FlagsAndPrompts(t *testing.T) {
	stubSecret(t, "s3cr3t")
	a := newTestApp("http://minio:9000\nAKIA\n")

	err := a.Run(context.Background(), []string{"bucket-add", "-bucket", "team", "-region", "eu-west-1", "-b", "ignored-config-flag"})
	require.NoError(t, err)

	require.Len(t, a.buckets.created, 1)
	req := a.buckets.created[0]
	assert.Equal(t, "team", req.Bucket)
	assert.Equal(t, "eu-west-1", req.Region)
	assert.Equal(t, "http://minio:9000", req.Endpoint)
	assert.Equal(t, "AKIA", req.AccessKeyID)
	assert.Equal(t, "s3cr3t", req.SecretAccessKey)
	assert.Contains(t, a.out.String(), "bucket registered: b-new")
	assert.NotContains(t, a.out.String(), "s3cr3t")
}

func TestBucketAdd_ProbeFailure(t *testing.T) {
	stubSecret(t, "bad")
	a := newTestApp("")
	a.buckets.createErr = &common.StorageError{Op: "HeadBucket", StatusCode: 403}

	err := a.BucketAdd(context.Background(), []string{"-bucket", "b", "-endpoint", "e", "-access-key", "k"})
	require.ErrorIs(t, err, common.ErrorStorage)
}

func TestBucketAdd_SecretReadError(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }

	a := newTestApp("")
	err := a.BucketAdd(context.Background(), []string{"-bucket", "b", "-endpoint", "e", "-access-key", "k"})
	require.Error(t, err)
	assert.Empty(t, a.buckets.created)
}

func TestBucketList(t *testing.T) {
	a := newTestApp("")
	a.buckets.list = []*models.Bucket{{BucketID: "b-1", BucketName: "Team", Bucket: "team", Endpoint: "http://s3", Active: true}}

	require.NoError(t, a.Run(context.Background(), []string{"bucket-list"}))
	lines := strings.Split(strings.TrimSpace(a.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "b-1")
	assert.Contains(t, lines[1], "true")
}

func TestBucketDelete(t *testing.T) {
	a := newTestApp("")
	require.ErrorIs(t, a.Run(context.Background(), []string{"bucket-delete"}), ErrUsage)

	require.NoError(t, a.Run(context.Background(), []string{"bucket-delete", "-id", "b-1"}))
	assert.Equal(t, []string{"b-1"}, a.buckets.deleted)
}

func TestGrant_SplitsCodes(t *testing.T) {
	a := newTestApp("")
	err := a.Run(context.Background(), []string{"grant", "-bucket-id", "b-1", "-user", "u-1", "-code", "read, update"})
	require.NoError(t, err)

	assert.Equal(t, models.PermissionScope{BucketID: "b-1"}, a.perms.scope)
	assert.Equal(t, []models.Grant{{UserID: "u-1", Code: models.PermRead}, {UserID: "u-1", Code: models.PermUpdate}}, a.perms.grants)
	assert.Contains(t, a.out.String(), "permissions added: 2")

	require.ErrorIs(t, a.Run(context.Background(), []string{"grant", "-user", "u-1"}), ErrUsage)
}

func TestSyncVersionsAndPrune(t *testing.T) {
	a := newTestApp("")
	require.NoError(t, a.Run(context.Background(), []string{"sync-versions", "-object", "o-1"}))
	assert.Equal(t, "o-1", a.syncer.objectID)
	assert.Contains(t, a.out.String(), "versions imported: 3")

	require.NoError(t, a.Run(context.Background(), []string{"import", "-bucket-id", "b-1", "-prefix", "in/"}))
	assert.Equal(t, "b-1", a.syncer.bucketID)
	assert.Equal(t, "in/", a.syncer.prefix)
	assert.Contains(t, a.out.String(), "objects imported: 4")

	require.NoError(t, a.Run(context.Background(), []string{"prune-metadata"}))
	assert.Equal(t, 1, a.pruner.calls)
	assert.Contains(t, a.out.String(), "metadata pruned: 2")
}
