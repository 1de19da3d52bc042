package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/memory"
	"github.com/dmitrijs2005/objcatalog/internal/server/storage"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// fakeStore is an in-memory ObjectStore. Versioning is per bucket id; the
// default bucket is "".
type fakeStore struct {
	mu sync.Mutex

	versioned   map[string]bool
	history     []storage.VersionInfo
	tags        map[string][]models.Tag
	putTagErr   error
	tagPuts     int
	tagDeletes  int
	uploadRes   *storage.UploadResult
	uploadErr   error
	uploads     []storage.UploadInput
	puts        []storage.PutObjectInput
	listing     []storage.ObjectInfo
	deleteRes   *storage.DeleteResult
	deleteErr   error
	deletes     []string
	presigned   []storage.PresignInput
	versionErr  error
	listedTimes int
	copies      []storage.CopyObjectInput
	copyRes     *storage.ObjectDescriptor
	copyErr     error
	reads       []string
	contentType map[string]string // by storage version id, or by key for the latest version
	heads       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{versioned: map[string]bool{}, tags: map[string][]models.Tag{}, contentType: map[string]string{}}
}

func tagKey(key, versionID string) string { return key + "@" + versionID }

// PutObject shares uploadRes and uploadErr with Upload.
func (f *fakeStore) PutObject(_ context.Context, in storage.PutObjectInput) (*storage.ObjectDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if f.uploadRes != nil {
		desc := f.uploadRes.ObjectDescriptor
		return &desc, nil
	}
	return &storage.ObjectDescriptor{Key: in.Key}, nil
}

func (f *fakeStore) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ObjectInfo
	for _, o := range f.listing {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) Upload(_ context.Context, in storage.UploadInput) (*storage.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, in)
	return f.uploadRes, f.uploadErr
}

func (f *fakeStore) CopyObject(_ context.Context, in storage.CopyObjectInput) (*storage.ObjectDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, in)
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	if f.copyRes != nil {
		return f.copyRes, nil
	}
	return &storage.ObjectDescriptor{Key: in.DestKey}, nil
}

func (f *fakeStore) ReadObject(_ context.Context, bucketID, key, versionID string) (*storage.ReadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, fmt.Sprintf("%s/%s?%s", bucketID, key, versionID))
	return &storage.ReadObjectOutput{
		ObjectInfo: storage.ObjectInfo{Key: key, VersionID: versionID},
		Body:       io.NopCloser(strings.NewReader("content of " + key)),
	}, nil
}

// HeadObject reports the content type registered for a storage version id,
// or NoSuchVersion when none is. Without a version id the latest version is
// looked up by key and reported as "latest-<key>".
func (f *fakeStore) HeadObject(_ context.Context, _, key, versionID string) (*storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads++
	lookup := versionID
	if versionID == "" {
		lookup, versionID = key, "latest-"+key
	}
	ct, ok := f.contentType[lookup]
	if !ok {
		return nil, &common.StorageError{Op: "HeadObject", Key: key, StatusCode: 404, Code: "NoSuchVersion"}
	}
	return &storage.ObjectInfo{Key: key, VersionID: versionID, ContentType: ct}, nil
}

func (f *fakeStore) DeleteObject(_ context.Context, bucketID, key, versionID string) (*storage.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, fmt.Sprintf("%s/%s?%s", bucketID, key, versionID))
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	if f.deleteRes != nil {
		return f.deleteRes, nil
	}
	return &storage.DeleteResult{}, nil
}

func (f *fakeStore) ListObjectVersions(context.Context, string, string) ([]storage.VersionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listedTimes++
	return f.history, nil
}

func (f *fakeStore) GetBucketVersioning(_ context.Context, bucketID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versioned[bucketID], f.versionErr
}

func (f *fakeStore) GetObjectTagging(_ context.Context, _, key, versionID string) ([]models.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Tag(nil), f.tags[tagKey(key, versionID)]...), nil
}

func (f *fakeStore) PutObjectTagging(_ context.Context, _, key, versionID string, tags []models.Tag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagPuts++
	if f.putTagErr != nil {
		return f.putTagErr
	}
	f.tags[tagKey(key, versionID)] = append([]models.Tag(nil), tags...)
	return nil
}

func (f *fakeStore) DeleteObjectTagging(_ context.Context, _, key, versionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagDeletes++
	delete(f.tags, tagKey(key, versionID))
	return nil
}

func (f *fakeStore) PresignURL(_ context.Context, in storage.PresignInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigned = append(f.presigned, in)
	return "https://signed/" + in.Key + "?v=" + in.VersionID, nil
}

type fakeProber struct {
	err   error
	calls []*storage.Bucket
}

func (p *fakeProber) HeadBucketDescriptor(_ context.Context, b *storage.Bucket) error {
	p.calls = append(p.calls, b)
	return p.err
}

// env wires every service over the in-memory repositories. The sqlite
// database only provides transactions.
type env struct {
	db       *sql.DB
	repos    *memory.Manager
	store    *fakeStore
	prober   *fakeProber
	metadata *MetadataService
	perms    *PermissionService
	catalog  *CatalogService
	tags     *TagService
	users    *UserService
	buckets  *BucketService
}

var jwtSecret = []byte("test-secret")

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos := memory.NewManager()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repos.Store.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	log := logging.NewNopLogger()
	e := &env{db: db, repos: repos, store: newFakeStore(), prober: &fakeProber{}}
	e.metadata = NewMetadataService(db, repos, log)
	e.perms = NewPermissionService(db, repos, log)
	e.catalog = NewCatalogService(db, repos, e.store, e.metadata, log)
	e.tags = NewTagService(db, repos, e.store, log)
	e.users = NewUserService(db, repos, jwtSecret, log)
	e.buckets = NewBucketService(db, repos, e.prober, &storage.Bucket{Bucket: "default"}, "pass", log)
	return e
}

func (e *env) createObject(t *testing.T, p models.Principal, req models.CreateObjectRequest) *models.ObjectWithVersion {
	t.Helper()
	if req.MimeType == "" {
		req.MimeType = "text/plain"
	}
	out, err := e.catalog.CreateObject(context.Background(), nil, req, p)
	require.NoError(t, err)
	return out
}

func (e *env) metadataOf(t *testing.T, versionID string) map[string]string {
	t.Helper()
	md, err := e.metadata.FetchMetadata(context.Background(), []string{versionID})
	require.NoError(t, err)
	out := map[string]string{}
	for _, m := range md {
		out[m.Key] = m.Value
	}
	return out
}

func user(id string) models.Principal { return models.Principal{UserID: id} }

func md(kv ...string) []models.Metadata {
	out := make([]models.Metadata, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, models.Metadata{Key: kv[i], Value: kv[i+1]})
	}
	return out
}
