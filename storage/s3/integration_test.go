//go:build integration
// +build integration

package s3_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhthomas/bazel-central-registry/internal/testutil"
	"github.com/uhthomas/bazel-central-registry/storage"
	"github.com/uhthomas/bazel-central-registry/storage/s3"
)

func TestIntegrationBucket(t *testing.T) {
	ctx := context.Background()
	ls := testutil.StartLocalStack(t)
	ls.CreateBucket(ctx, t, "bcr-test")

	cfg := ls.AWSConfig()
	bucket, err := s3.New(ctx, "bcr-test",
		s3.WithAWSConfig(&cfg),
		s3.WithEndpoint(ls.Endpoint()),
		s3.WithForcePathStyle(true),
	)
	require.NoError(t, err)

	t.Run("put and overwrite", func(t *testing.T) {
		require.NoError(t, bucket.Put(ctx, "module_list", bytes.NewReader([]byte("old")), 3, "text/plain"))
		require.NoError(t, bucket.Put(ctx, "module_list", bytes.NewReader([]byte("m1\nm2")), 5, "text/plain"))

		out, err := ls.Client().GetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String("bcr-test"),
			Key:    aws.String("module_list"),
		})
		require.NoError(t, err)
		defer out.Body.Close()
		data, err := io.ReadAll(out.Body)
		require.NoError(t, err)
		assert.Equal(t, "m1\nm2", string(data))
	})

	t.Run("list and delete", func(t *testing.T) {
		for _, key := range []string{"modules/foo/1.0/source.json", "modules/bar/1.0/source.json"} {
			require.NoError(t, bucket.Put(ctx, key, bytes.NewReader([]byte("{}")), 2, "application/json"))
		}

		objects, err := bucket.List(ctx, "modules/")
		require.NoError(t, err)
		require.Len(t, objects, 2)
		assert.NotEmpty(t, objects[0].ETag)

		require.NoError(t, bucket.Delete(ctx, []string{"modules/bar/1.0/source.json", "modules/absent"}))

		objects, err = bucket.List(ctx, "modules/")
		require.NoError(t, err)
		require.Len(t, objects, 1)
		assert.Equal(t, "modules/foo/1.0/source.json", objects[0].Key)
	})

	t.Run("missing bucket", func(t *testing.T) {
		missing, err := s3.New(ctx, "does-not-exist",
			s3.WithAWSConfig(&cfg),
			s3.WithEndpoint(ls.Endpoint()),
			s3.WithForcePathStyle(true),
		)
		require.NoError(t, err)

		_, err = missing.List(ctx, "modules/")
		assert.ErrorIs(t, err, storage.ErrBucketNotFound)
	})
}
