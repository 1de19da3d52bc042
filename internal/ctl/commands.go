package ctl

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/objcatalog/internal/flagx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

// newFlagSet parses only the named flags out of args, so config flags given
// after the command do not trip the parser.
func newFlagSet(name string, args []string, names []string, define func(fs *flag.FlagSet)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	define(fs)
	if err := fs.Parse(flagx.FilterArgs(args, names)); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return nil
}

func (a *App) Migrate(ctx context.Context) error {
	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}
	fmt.Fprintln(a.out, "migrations applied")
	return nil
}

// BucketAdd registers a bucket. Fields not given as flags are prompted for;
// the secret key is always read from the terminal without echo.
func (a *App) BucketAdd(ctx context.Context, args []string) error {
	var req models.CreateBucketRequest
	err := newFlagSet("bucket-add", args,
		[]string{"-name", "-bucket", "-endpoint", "-key", "-region", "-access-key"},
		func(fs *flag.FlagSet) {
			fs.StringVar(&req.BucketName, "name", "", "display name")
			fs.StringVar(&req.Bucket, "bucket", "", "bucket name")
			fs.StringVar(&req.Endpoint, "endpoint", "", "S3 endpoint")
			fs.StringVar(&req.Key, "key", "", "key prefix")
			fs.StringVar(&req.Region, "region", "", "region")
			fs.StringVar(&req.AccessKeyID, "access-key", "", "access key id")
		})
	if err != nil {
		return err
	}

	for _, f := range []struct {
		prompt string
		dst    *string
	}{
		{"Bucket", &req.Bucket},
		{"Endpoint", &req.Endpoint},
		{"Access key id", &req.AccessKeyID},
	} {
		if *f.dst != "" {
			continue
		}
		if *f.dst, err = GetSimpleText(a.reader, f.prompt, a.out); err != nil {
			return err
		}
	}

	if req.SecretAccessKey, err = GetSecret("Secret access key", a.out); err != nil {
		return err
	}

	b, err := a.buckets.CreateBucket(ctx, nil, req, models.SystemPrincipal())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "bucket registered: %s\n", b.BucketID)
	return nil
}

func (a *App) BucketList(ctx context.Context) error {
	list, err := a.buckets.ListBuckets(ctx, models.SystemPrincipal())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBUCKET\tENDPOINT\tKEY\tACTIVE")
	for _, b := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", b.BucketID, b.BucketName, b.Bucket, b.Endpoint, b.Key, b.Active)
	}
	return w.Flush()
}

func (a *App) BucketDelete(ctx context.Context, args []string) error {
	var id string
	if err := newFlagSet("bucket-delete", args, []string{"-id"}, func(fs *flag.FlagSet) {
		fs.StringVar(&id, "id", "", "bucket id")
	}); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: -id is required", ErrUsage)
	}

	if err := a.buckets.DeleteBucket(ctx, nil, id, models.SystemPrincipal()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "bucket deleted: %s\n", id)
	return nil
}

// Grant adds permission codes for one user on an object or a bucket.
func (a *App) Grant(ctx context.Context, args []string) error {
	var scope models.PermissionScope
	var userID, codes string
	if err := newFlagSet("grant", args, []string{"-object", "-bucket-id", "-user", "-code"}, func(fs *flag.FlagSet) {
		fs.StringVar(&scope.ObjectID, "object", "", "object id")
		fs.StringVar(&scope.BucketID, "bucket-id", "", "bucket id")
		fs.StringVar(&userID, "user", "", "user id")
		fs.StringVar(&codes, "code", "", "comma separated permission codes")
	}); err != nil {
		return err
	}
	if userID == "" || codes == "" {
		return fmt.Errorf("%w: -user and -code are required", ErrUsage)
	}

	var grants []models.Grant
	for _, c := range strings.Split(codes, ",") {
		grants = append(grants, models.Grant{UserID: userID, Code: models.PermissionCode(strings.ToUpper(strings.TrimSpace(c)))})
	}

	n, err := a.perms.AddPermissions(ctx, nil, scope, grants, models.SystemPrincipal())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "permissions added: %d\n", n)
	return nil
}

func (a *App) SyncVersions(ctx context.Context, args []string) error {
	var objectID string
	if err := newFlagSet("sync-versions", args, []string{"-object"}, func(fs *flag.FlagSet) {
		fs.StringVar(&objectID, "object", "", "object id")
	}); err != nil {
		return err
	}
	if objectID == "" {
		return fmt.Errorf("%w: -object is required", ErrUsage)
	}

	n, err := a.catalog.SyncVersions(ctx, nil, objectID, models.SystemPrincipal())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "versions imported: %d\n", n)
	return nil
}

// Import records every stored key under -prefix that the catalog does not
// know yet. Without -bucket-id the default bucket is scanned.
func (a *App) Import(ctx context.Context, args []string) error {
	var bucketID, prefix string
	if err := newFlagSet("import", args, []string{"-bucket-id", "-prefix"}, func(fs *flag.FlagSet) {
		fs.StringVar(&bucketID, "bucket-id", "", "registered bucket id")
		fs.StringVar(&prefix, "prefix", "", "key prefix, relative to the bucket prefix")
	}); err != nil {
		return err
	}

	n, err := a.catalog.ImportObjects(ctx, nil, bucketID, prefix, models.SystemPrincipal())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "objects imported: %d\n", n)
	return nil
}

func (a *App) PruneMetadata(ctx context.Context) error {
	n, err := a.metadata.PruneOrphanedMetadata(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "metadata pruned: %d\n", n)
	return nil
}
