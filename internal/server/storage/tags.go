package storage

import (
	"net/url"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

// MaxTags is the per-object tag limit of S3.
const MaxTags = 10

// EncodeTags renders tags in the URL query form S3 accepts in the
// x-amz-tagging header ("k1=v1&k2=v2"), keys sorted.
func EncodeTags(tags []models.Tag) string {
	v := url.Values{}
	for _, t := range tags {
		v.Set(t.Key, t.Value)
	}
	return v.Encode()
}

// MergeTags overlays add onto base. Keys in add win; order is by key.
func MergeTags(base, add []models.Tag) []models.Tag {
	m := make(map[string]string, len(base)+len(add))
	for _, t := range base {
		m[t.Key] = t.Value
	}
	for _, t := range add {
		m[t.Key] = t.Value
	}
	return fromMap(m)
}

// WithoutTags drops the named keys from tags.
func WithoutTags(tags []models.Tag, keys []string) []models.Tag {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	var out []models.Tag
	for _, t := range tags {
		if !drop[t.Key] {
			out = append(out, t)
		}
	}
	return out
}

func toTagSet(tags []models.Tag) []types.Tag {
	out := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return out
}

func fromTagSet(set []types.Tag) []models.Tag {
	m := make(map[string]string, len(set))
	for _, t := range set {
		m[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return fromMap(m)
}

func fromMap(m map[string]string) []models.Tag {
	out := make([]models.Tag, 0, len(m))
	for k, v := range m {
		out = append(out, models.Tag{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
