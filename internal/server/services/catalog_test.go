package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateObject_OwnerGetsEveryCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	out := e.createObject(t, user("alice"), models.CreateObjectRequest{
		Path: "docs/plan.txt", Metadata: md("project", "apollo"),
	})
	assert.Equal(t, "plan.txt", out.Object.Name)
	assert.Equal(t, out.Object.ID, out.Version.ObjectID)
	assert.Equal(t, []models.Metadata{{ID: out.Metadata[0].ID, Key: "project", Value: "apollo"}}, out.Metadata)

	grants, err := e.perms.SearchPermissions(ctx, models.PermissionFilter{UserIDs: []string{"alice"}, ObjectPerms: true})
	require.NoError(t, err)
	var codes []models.PermissionCode
	for _, g := range grants {
		codes = append(codes, g.Code)
	}
	assert.ElementsMatch(t, models.AllPermissionCodes, codes)
}

func TestCreateObject_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.catalog.CreateObject(ctx, nil, models.CreateObjectRequest{MimeType: "text/plain"}, user("u"))
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = e.catalog.CreateObject(ctx, nil, models.CreateObjectRequest{Path: "a", MimeType: "text/plain"}, models.AnonymousPrincipal())
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestCreateObject_RegisteredBucketNeedsCreateGrant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bucketID := registerBucket(t, e, "team")

	_, err := e.catalog.CreateObject(ctx, nil, models.CreateObjectRequest{BucketID: bucketID, Path: "a", MimeType: "text/plain"}, user("bob"))
	require.ErrorIs(t, err, common.ErrorForbidden)

	_, err = e.perms.AddPermissions(ctx, nil, models.PermissionScope{BucketID: bucketID},
		[]models.Grant{{UserID: "bob", Code: models.PermCreate}}, models.SystemPrincipal())
	require.NoError(t, err)

	_, err = e.catalog.CreateObject(ctx, nil, models.CreateObjectRequest{BucketID: bucketID, Path: "a", MimeType: "text/plain"}, user("bob"))
	require.NoError(t, err)
}

func TestCurrentVersion_SkipsDeleteMarkers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.versioned[""] = true

	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a.txt", S3VersionID: "s1"})
	v2, err := e.catalog.CreateVersion(ctx, nil, obj.Object.ID, models.CreateVersionRequest{S3VersionID: "s2", MimeType: "text/plain"}, models.SystemPrincipal())
	require.NoError(t, err)

	cur, err := e.catalog.CurrentVersion(ctx, obj.Object.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, cur.ID)

	e.store.deleteRes = &storage.DeleteResult{VersionID: "dm", DeleteMarker: true}
	require.NoError(t, e.catalog.DeleteObject(ctx, nil, obj.Object.ID, "", models.SystemPrincipal()))

	cur, err = e.catalog.CurrentVersion(ctx, obj.Object.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, cur.ID, "a delete marker is never current")

	e.store.versioned[""] = false
	all, err := e.catalog.ListObjectVersion(ctx, obj.Object.ID, models.SystemPrincipal())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].DeleteMarker)
	assert.Equal(t, v2.ID, all[1].ID)
	assert.Equal(t, obj.Version.ID, all[2].ID)
}

func TestListObjectVersion_VersionedBucketUsesStorageOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.versioned[""] = true
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a.txt", S3VersionID: "s1"})

	t0 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	e.store.history = []storage.VersionInfo{
		{Key: "a.txt", VersionID: "s-unknown", IsLatest: true, LastModified: t0.Add(time.Hour)},
		{Key: "a.txt", VersionID: "s1", LastModified: t0},
	}

	got, err := e.catalog.ListObjectVersion(ctx, obj.Object.ID, models.SystemPrincipal())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].ID, "versions unknown to the catalog come back without an id")
	assert.Equal(t, "s-unknown", got[0].S3VersionID)
	assert.Equal(t, obj.Version.ID, got[1].ID)
}

func TestCreateVersion_UnversionedReplacesInPlace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", Metadata: md("k", "old")})

	v, err := e.catalog.CreateVersion(ctx, nil, obj.Object.ID, models.CreateVersionRequest{
		MimeType: "application/json", ETag: "e2", Metadata: md("k", "new"),
	}, models.SystemPrincipal())
	require.NoError(t, err)
	assert.Equal(t, obj.Version.ID, v.ID)
	assert.Equal(t, "application/json", v.MimeType)

	all, err := e.repos.Versions(nil).ListByObject(ctx, obj.Object.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, map[string]string{"k": "new"}, e.metadataOf(t, v.ID))
}

func TestCreateVersion_NilMetadataKeepsSet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", Metadata: md("k", "v")})

	_, err := e.catalog.CreateVersion(ctx, nil, obj.Object.ID, models.CreateVersionRequest{MimeType: "text/plain"}, models.SystemPrincipal())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "v"}, e.metadataOf(t, obj.Version.ID))
}

func TestDeleteObject_UnversionedDeactivates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, user("alice"), models.CreateObjectRequest{Path: "dir/a", Metadata: md("k", "v")})

	require.NoError(t, e.catalog.DeleteObject(ctx, nil, obj.Object.ID, "", user("alice")))
	assert.Equal(t, []string{"/dir/a?"}, e.store.deletes)

	stored, err := e.repos.Objects(nil).Get(ctx, obj.Object.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, "alice", stored.UpdatedBy)
	assert.Equal(t, map[string]string{"k": "v"}, e.metadataOf(t, obj.Version.ID))

	_, err = e.catalog.ReadObject(ctx, obj.Object.ID, user("alice"))
	require.ErrorIs(t, err, common.ErrorNotFound)
	err = e.catalog.DeleteObject(ctx, nil, obj.Object.ID, "", user("alice"))
	require.ErrorIs(t, err, common.ErrorNotFound)

	list, err := e.catalog.SearchObjects(ctx, models.ObjectFilter{}, user("alice"))
	require.NoError(t, err)
	assert.Empty(t, list)
	inactive := false
	list, err = e.catalog.SearchObjects(ctx, models.ObjectFilter{Active: &inactive}, user("alice"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, obj.Object.ID, list[0].Object.ID)
}

func TestDeleteObject_VersionedWithVersionID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.versioned[""] = true
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", S3VersionID: "s1"})
	v2, err := e.catalog.CreateVersion(ctx, nil, obj.Object.ID, models.CreateVersionRequest{S3VersionID: "s2", MimeType: "text/plain"}, models.SystemPrincipal())
	require.NoError(t, err)

	require.NoError(t, e.catalog.DeleteObject(ctx, nil, obj.Object.ID, v2.ID, models.SystemPrincipal()))
	assert.Equal(t, []string{"/a?s2"}, e.store.deletes)

	cur, err := e.catalog.CurrentVersion(ctx, obj.Object.ID)
	require.NoError(t, err)
	assert.Equal(t, obj.Version.ID, cur.ID, "the prior version stays retrievable")
}

func TestDeleteObject_VersionedWithoutVersionAppendsMarker(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.versioned[""] = true
	e.store.deleteRes = &storage.DeleteResult{VersionID: "dm1", DeleteMarker: true}
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", S3VersionID: "s1", Metadata: md("k", "v")})

	require.NoError(t, e.catalog.DeleteObject(ctx, nil, obj.Object.ID, "", models.SystemPrincipal()))
	assert.Equal(t, []string{"/a?"}, e.store.deletes)

	versions, err := e.repos.Versions(nil).ListByObject(ctx, obj.Object.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	var marker *models.Version
	for _, v := range versions {
		if v.DeleteMarker {
			marker = v
		}
	}
	require.NotNil(t, marker)
	assert.Equal(t, "dm1", marker.S3VersionID)

	_, err = e.repos.Objects(nil).Get(ctx, obj.Object.ID)
	require.NoError(t, err, "the object survives a delete marker")
	assert.Equal(t, map[string]string{"k": "v"}, e.metadataOf(t, obj.Version.ID))
}

func TestDeleteObject_NeedsDeleteGrant(t *testing.T) {
	e := newEnv(t)
	obj := e.createObject(t, user("alice"), models.CreateObjectRequest{Path: "a", Public: true})

	err := e.catalog.DeleteObject(context.Background(), nil, obj.Object.ID, "", user("mallory"))
	require.ErrorIs(t, err, common.ErrorForbidden)
	assert.Empty(t, e.store.deletes)
}

func TestUploadVersion_TagFailureStillRecordsVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.versioned[""] = true
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", S3VersionID: "s1"})

	e.store.uploadRes = &storage.UploadResult{ObjectDescriptor: storage.ObjectDescriptor{Key: "a", VersionID: "s2", ETag: "e"}}
	e.store.uploadErr = &common.PartialUploadError{Key: "a", VersionID: "s2", Cause: &common.StorageError{Op: "PutObjectTagging", StatusCode: 403}}

	v, err := e.catalog.UploadVersion(ctx, nil, obj.Object.ID, models.UploadRequest{
		Body:        strings.NewReader("data"),
		ContentType: "text/plain",
		Tags:        []models.Tag{{Key: "a", Value: "b"}},
	}, models.SystemPrincipal())
	require.True(t, IsPartialUpload(err))
	require.NotNil(t, v)
	assert.Equal(t, "s2", v.S3VersionID)

	cur, err := e.catalog.CurrentVersion(ctx, obj.Object.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, cur.ID)
	require.Len(t, e.store.uploads, 1)
	assert.Equal(t, "a", e.store.uploads[0].Key)
}

func TestUploadVersion_StoreFailureWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a"})
	e.store.uploadErr = &common.StorageError{Op: "PutObject", StatusCode: 500}

	_, err := e.catalog.UploadVersion(ctx, nil, obj.Object.ID, models.UploadRequest{Body: strings.NewReader("x"), ContentType: "text/plain"}, models.SystemPrincipal())
	require.ErrorIs(t, err, common.ErrorStorage)
	assert.False(t, IsPartialUpload(err))
	assert.Equal(t, 0, e.repos.Store.Calls("versions.ReplaceContent"))
}

func TestSearchObjects_PaginatesReadableRowsOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var readable []string
	for i, path := range []string{"a", "b", "c", "d"} {
		o := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: path, Metadata: md("n", path)})
		if i%2 == 0 {
			_, err := e.perms.AddPermissions(ctx, nil, models.PermissionScope{ObjectID: o.Object.ID},
				[]models.Grant{{UserID: "reader", Code: models.PermRead}}, models.SystemPrincipal())
			require.NoError(t, err)
			readable = append(readable, o.Object.ID)
		}
	}

	page, err := e.catalog.SearchObjects(ctx, models.ObjectFilter{Limit: 1, Offset: 1}, user("reader"))
	require.NoError(t, err)
	require.Len(t, page, 1)
	// Newest first: "c" then "a".
	assert.Equal(t, readable[0], page[0].Object.ID)
	assert.Equal(t, []models.Metadata{{ID: page[0].Metadata[0].ID, Key: "n", Value: "a"}}, page[0].Metadata)
}

func TestSyncVersions_AddsMissingOldestFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.versioned[""] = true
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", S3VersionID: "s1"})

	t0 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	e.store.history = []storage.VersionInfo{
		{VersionID: "dm", DeleteMarker: true, IsLatest: true, LastModified: t0.Add(2 * time.Hour)},
		{VersionID: "s3", LastModified: t0.Add(time.Hour)},
		{VersionID: "s1", LastModified: t0},
	}

	n, err := e.catalog.SyncVersions(ctx, nil, obj.Object.ID, models.SystemPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := e.repos.Versions(nil).ListByObject(ctx, obj.Object.ID)
	require.NoError(t, err)
	var got []string
	for _, v := range all {
		got = append(got, v.S3VersionID)
	}
	if diff := cmp.Diff([]string{"dm", "s3", "s1"}, got); diff != "" {
		t.Fatalf("versions mismatch (-want +got):\n%s", diff)
	}

	cur, err := e.catalog.CurrentVersion(ctx, obj.Object.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3", cur.S3VersionID)
	assert.Equal(t, "text/plain", cur.MimeType)

	n, err = e.catalog.SyncVersions(ctx, nil, obj.Object.ID, models.SystemPrincipal())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPresignURL_MapsVersionAndMethod(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, user("alice"), models.CreateObjectRequest{Path: "a", S3VersionID: "s1"})

	url, err := e.catalog.PresignURL(ctx, obj.Object.ID, obj.Version.ID, "get", user("alice"))
	require.NoError(t, err)
	assert.Equal(t, "https://signed/a?v=s1", url)
	assert.Equal(t, "GET", e.store.presigned[0].Method)

	_, err = e.catalog.PresignURL(ctx, obj.Object.ID, "", "PUT", models.AnonymousPrincipal())
	require.ErrorIs(t, err, common.ErrorForbidden)

	_, err = e.catalog.PresignURL(ctx, obj.Object.ID, "missing", "GET", user("alice"))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCopyObject_CopyDirectiveKeepsSourceMetadata(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, user("alice"), models.CreateObjectRequest{Path: "dir/a.txt", S3VersionID: "s1", Metadata: md("k", "v")})
	e.store.copyRes = &storage.ObjectDescriptor{Key: "dir/b.txt", VersionID: "c1", ETag: "e1"}

	cp, err := e.catalog.CopyObject(ctx, nil, obj.Object.ID, models.CopyObjectRequest{Path: "dir/b.txt"}, user("alice"))
	require.NoError(t, err)

	want := storage.CopyObjectInput{
		SourceKey:         "dir/a.txt",
		SourceVersionID:   "s1",
		DestKey:           "dir/b.txt",
		MetadataDirective: storage.DirectiveCopy,
		TaggingDirective:  storage.DirectiveCopy,
	}
	require.Len(t, e.store.copies, 1)
	if diff := cmp.Diff(want, e.store.copies[0]); diff != "" {
		t.Fatalf("copy input mismatch (-want +got):\n%s", diff)
	}

	assert.NotEqual(t, obj.Object.ID, cp.Object.ID)
	assert.Equal(t, "b.txt", cp.Object.Name)
	assert.Equal(t, "c1", cp.Version.S3VersionID)
	assert.Equal(t, "e1", cp.Version.ETag)
	assert.Equal(t, "text/plain", cp.Version.MimeType)
	assert.Equal(t, map[string]string{"k": "v"}, e.metadataOf(t, cp.Version.ID))

	ok, err := e.perms.HasPermission(ctx, "alice", cp.Object.ID, models.PermDelete)
	require.NoError(t, err)
	assert.True(t, ok, "the copier owns the copy")
}

func TestCopyObject_ReplaceSendsExactlyCallerSet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", Metadata: md("old", "1")})

	cp, err := e.catalog.CopyObject(ctx, nil, obj.Object.ID, models.CopyObjectRequest{
		Path:            "b",
		ReplaceMetadata: true,
		Metadata:        md("new", "2"),
		ReplaceTags:     true,
		Tags:            []models.Tag{{Key: "t", Value: "1"}},
	}, models.SystemPrincipal())
	require.NoError(t, err)

	in := e.store.copies[0]
	assert.Equal(t, storage.DirectiveReplace, in.MetadataDirective)
	assert.Equal(t, map[string]string{"new": "2"}, in.Metadata)
	assert.Equal(t, "text/plain", in.ContentType)
	assert.Equal(t, storage.DirectiveReplace, in.TaggingDirective)
	assert.Equal(t, []models.Tag{{Key: "t", Value: "1"}}, in.Tags)

	assert.Equal(t, map[string]string{"new": "2"}, e.metadataOf(t, cp.Version.ID))
	assert.Equal(t, map[string]string{"old": "1"}, e.metadataOf(t, obj.Version.ID))
}

func TestCopyObject_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a"})

	for name, req := range map[string]models.CopyObjectRequest{
		"no path":                {},
		"replace without set":    {Path: "b", ReplaceMetadata: true},
		"replace without tags":   {Path: "b", ReplaceTags: true},
		"from a foreign version": {Path: "b", SourceVersionID: "missing"},
	} {
		_, err := e.catalog.CopyObject(ctx, nil, obj.Object.ID, req, models.SystemPrincipal())
		require.Error(t, err, name)
	}
	assert.Empty(t, e.store.copies)
}

func TestCopyObject_ForbiddenCopiesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, user("alice"), models.CreateObjectRequest{Path: "a", Public: true})

	_, err := e.catalog.CopyObject(ctx, nil, obj.Object.ID, models.CopyObjectRequest{Path: "b"}, models.AnonymousPrincipal())
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	private := e.createObject(t, user("alice"), models.CreateObjectRequest{Path: "p"})
	_, err = e.catalog.CopyObject(ctx, nil, private.Object.ID, models.CopyObjectRequest{Path: "b"}, user("bob"))
	require.ErrorIs(t, err, common.ErrorForbidden)
	assert.Empty(t, e.store.copies)
}

func TestCopyObject_StoreFailureRecordsNothing(t *testing.T) {
	e := newEnv(t)
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a"})
	created := e.repos.Store.Calls("objects.Create")
	e.store.copyErr = &common.StorageError{Op: "CopyObject", StatusCode: 500}

	_, err := e.catalog.CopyObject(context.Background(), nil, obj.Object.ID, models.CopyObjectRequest{Path: "b"}, models.SystemPrincipal())
	require.ErrorIs(t, err, common.ErrorStorage)
	assert.Equal(t, created, e.repos.Store.Calls("objects.Create"))
}

func TestRestoreVersion_AppendsCopyOfEarlierVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.versioned[""] = true
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", S3VersionID: "s1", Metadata: md("k", "old")})
	v2, err := e.catalog.CreateVersion(ctx, nil, obj.Object.ID, models.CreateVersionRequest{
		S3VersionID: "s2", MimeType: "application/json", Metadata: md("k", "new"),
	}, models.SystemPrincipal())
	require.NoError(t, err)

	e.store.copyRes = &storage.ObjectDescriptor{VersionID: "s3", ETag: "e3"}
	v3, err := e.catalog.RestoreVersion(ctx, nil, obj.Object.ID, obj.Version.ID, models.SystemPrincipal())
	require.NoError(t, err)

	require.Len(t, e.store.copies, 1)
	in := e.store.copies[0]
	assert.Equal(t, "a", in.SourceKey)
	assert.Equal(t, "a", in.DestKey)
	assert.Equal(t, "s1", in.SourceVersionID)
	assert.Equal(t, storage.DirectiveCopy, in.MetadataDirective)
	assert.Equal(t, storage.DirectiveCopy, in.TaggingDirective)

	cur, err := e.catalog.CurrentVersion(ctx, obj.Object.ID)
	require.NoError(t, err)
	assert.Equal(t, v3.ID, cur.ID)
	assert.Equal(t, "s3", cur.S3VersionID)
	assert.Equal(t, "text/plain", cur.MimeType)
	assert.Equal(t, map[string]string{"k": "old"}, e.metadataOf(t, v3.ID))
	assert.Equal(t, map[string]string{"k": "new"}, e.metadataOf(t, v2.ID))
}

func TestRestoreVersion_NeedsVersioningBucket(t *testing.T) {
	e := newEnv(t)
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a"})

	_, err := e.catalog.RestoreVersion(context.Background(), nil, obj.Object.ID, obj.Version.ID, models.SystemPrincipal())
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Empty(t, e.store.copies)
}

func TestReadContent_OpensStoredVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, user("alice"), models.CreateObjectRequest{Path: "a", S3VersionID: "s1"})

	out, err := e.catalog.ReadContent(ctx, obj.Object.ID, obj.Version.ID, user("alice"))
	require.NoError(t, err)
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.Equal(t, "content of a", string(body))
	assert.Equal(t, []string{"/a?s1"}, e.store.reads)

	_, err = e.catalog.ReadContent(ctx, obj.Object.ID, "", user("bob"))
	require.ErrorIs(t, err, common.ErrorForbidden)
}

func TestSyncVersions_TakesContentTypeFromStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.versioned[""] = true
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", S3VersionID: "s1"})
	e.store.history = []storage.VersionInfo{
		{VersionID: "s2", IsLatest: true, LastModified: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		{VersionID: "s1"},
	}
	e.store.contentType["s2"] = "image/png"

	n, err := e.catalog.SyncVersions(ctx, nil, obj.Object.ID, models.SystemPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, e.store.heads, "only the missing version is inspected")

	v, err := e.repos.Versions(nil).GetByS3VersionID(ctx, obj.Object.ID, "s2")
	require.NoError(t, err)
	assert.Equal(t, "image/png", v.MimeType)
}

func TestPresignURL_UnsupportedMethodRejectedBeforeLookup(t *testing.T) {
	e := newEnv(t)

	_, err := e.catalog.PresignURL(context.Background(), "missing", "", "POST", models.AnonymousPrincipal())
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Zero(t, e.repos.Store.Calls("objects.Get"))
	assert.Empty(t, e.store.presigned)
}

func TestUploadVersion_WithoutTagsSkipsTagging(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	obj := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "a", S3VersionID: "s1"})
	e.store.uploadRes = &storage.UploadResult{ObjectDescriptor: storage.ObjectDescriptor{Key: "a", VersionID: "s2", ETag: "e2"}}

	v, err := e.catalog.UploadVersion(ctx, nil, obj.Object.ID, models.UploadRequest{
		Body: strings.NewReader("data"), ContentType: "text/csv", ContentLength: 4,
	}, models.SystemPrincipal())
	require.NoError(t, err)
	assert.Equal(t, "e2", v.ETag)
	assert.Empty(t, e.store.uploads)
	require.Len(t, e.store.puts, 1)
	assert.Equal(t, "a", e.store.puts[0].Key)
	assert.Equal(t, "text/csv", e.store.puts[0].ContentType)
	assert.Equal(t, int64(4), e.store.puts[0].ContentLength)
}

func TestImportObjects_RecordsUnknownKeys(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	known := e.createObject(t, models.SystemPrincipal(), models.CreateObjectRequest{Path: "in/known.txt"})
	e.store.listing = []storage.ObjectInfo{
		{Key: "in/"},
		{Key: "in/known.txt"},
		{Key: "in/new.csv", ETag: "e1"},
		{Key: "in/raw"},
		{Key: "out/skip.txt"},
	}
	e.store.contentType["in/new.csv"] = "text/csv"
	e.store.contentType["in/raw"] = ""

	n, err := e.catalog.ImportObjects(ctx, nil, "", "in/", user("alice"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, e.store.heads)

	got, err := e.catalog.SearchObjects(ctx, models.ObjectFilter{Path: "in/"}, models.SystemPrincipal())
	require.NoError(t, err)
	byPath := map[string]*models.ObjectWithVersion{}
	for _, o := range got {
		byPath[o.Object.Path] = o
	}
	require.Len(t, byPath, 3)
	assert.Equal(t, known.Object.ID, byPath["in/known.txt"].Object.ID)
	assert.Equal(t, "new.csv", byPath["in/new.csv"].Object.Name)
	assert.Equal(t, "text/csv", byPath["in/new.csv"].Version.MimeType)
	assert.Equal(t, "latest-in/new.csv", byPath["in/new.csv"].Version.S3VersionID)
	assert.Equal(t, "e1", byPath["in/new.csv"].Version.ETag)
	assert.Equal(t, "application/octet-stream", byPath["in/raw"].Version.MimeType)

	ok, err := e.perms.HasPermission(ctx, "alice", byPath["in/raw"].Object.ID, models.PermManage)
	require.NoError(t, err)
	assert.True(t, ok, "the importer owns imported objects")

	n, err = e.catalog.ImportObjects(ctx, nil, "", "in/", user("alice"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportObjects_AnonymousRejectedBeforeListing(t *testing.T) {
	e := newEnv(t)
	e.store.listing = []storage.ObjectInfo{{Key: "a"}}

	_, err := e.catalog.ImportObjects(context.Background(), nil, "", "", models.AnonymousPrincipal())
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Zero(t, e.store.heads)
	assert.Zero(t, e.repos.Store.Calls("objects.Create"))
}
