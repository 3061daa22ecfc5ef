package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhthomas/bazel-central-registry/internal/testutil"
	"github.com/uhthomas/bazel-central-registry/storage"
)

type statusError struct{ code int }

func (e *statusError) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e *statusError) HTTPStatusCode() int { return e.code }

func TestBucket_Put(t *testing.T) {
	var got *s3.PutObjectInput
	var body []byte
	mock := &testutil.MockS3Client{
		PutObjectFunc: func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			got = in
			var err error
			body, err = io.ReadAll(in.Body)
			return &s3.PutObjectOutput{}, err
		},
	}

	b := NewWithClient(mock, "bcr.bazel.build")
	err := b.Put(context.Background(), "module_list", bytes.NewReader([]byte("m1\nm2")), 5, "text/plain")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "bcr.bazel.build", aws.ToString(got.Bucket))
	assert.Equal(t, "module_list", aws.ToString(got.Key))
	assert.Equal(t, int64(5), aws.ToInt64(got.ContentLength))
	assert.Equal(t, "text/plain", aws.ToString(got.ContentType))
	assert.Equal(t, "m1\nm2", string(body))
}

func TestBucket_PutErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind storage.Kind
		is   error
	}{
		{
			name: "access denied",
			err:  &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"},
			kind: storage.KindPermission,
			is:   storage.ErrAccessDenied,
		},
		{
			name: "bad signature",
			err:  &smithy.GenericAPIError{Code: "SignatureDoesNotMatch"},
			kind: storage.KindPermission,
			is:   storage.ErrAccessDenied,
		},
		{
			name: "no such bucket",
			err:  &smithy.GenericAPIError{Code: "NoSuchBucket"},
			kind: storage.KindNotFound,
			is:   storage.ErrBucketNotFound,
		},
		{
			name: "http 403",
			err:  &smithy.OperationError{ServiceID: "S3", OperationName: "PutObject", Err: &statusError{code: 403}},
			kind: storage.KindPermission,
			is:   storage.ErrAccessDenied,
		},
		{
			name: "http 404",
			err:  &statusError{code: 404},
			kind: storage.KindNotFound,
			is:   storage.ErrBucketNotFound,
		},
		{
			name: "network",
			err:  errors.New("dial tcp: connection refused"),
			kind: storage.KindTransport,
		},
		{
			name: "canceled",
			err:  &smithy.OperationError{ServiceID: "S3", OperationName: "PutObject", Err: context.Canceled},
			kind: storage.KindCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockS3Client{
				PutObjectFunc: func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
					return nil, tt.err
				},
			}
			b := NewWithClient(mock, "bcr")
			err := b.Put(context.Background(), "k", bytes.NewReader(nil), 0, "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, storage.KindOf(err))
			assert.ErrorIs(t, err, tt.err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}

			var se *storage.Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "put", se.Op)
			assert.Equal(t, "bcr", se.Bucket)
			assert.Equal(t, "k", se.Key)
		})
	}
}

func TestBucket_ListPaginates(t *testing.T) {
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var calls int
	mock := &testutil.MockS3Client{
		ListObjectsV2Func: func(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			calls++
			assert.Equal(t, "modules/", aws.ToString(in.Prefix))
			if in.ContinuationToken == nil {
				return &s3.ListObjectsV2Output{
					Contents: []types.Object{
						{Key: aws.String("modules/a"), Size: aws.Int64(1), ETag: aws.String(`"abc"`), LastModified: &modified},
					},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("next"),
				}, nil
			}
			assert.Equal(t, "next", aws.ToString(in.ContinuationToken))
			return &s3.ListObjectsV2Output{
				Contents: []types.Object{
					{Key: aws.String("modules/b"), Size: aws.Int64(2), ETag: aws.String(`"def-2"`)},
				},
				IsTruncated: aws.Bool(false),
			}, nil
		},
	}

	objects, err := NewWithClient(mock, "bcr").List(context.Background(), "modules/")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []storage.Object{
		{Key: "modules/a", Size: 1, ETag: "abc", LastModified: modified},
		{Key: "modules/b", Size: 2, ETag: "def-2"},
	}, objects)
}

func TestBucket_ListError(t *testing.T) {
	mock := &testutil.MockS3Client{
		ListObjectsV2Func: func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return nil, &smithy.GenericAPIError{Code: "NoSuchBucket"}
		},
	}
	_, err := NewWithClient(mock, "missing").List(context.Background(), "modules/")
	assert.ErrorIs(t, err, storage.ErrBucketNotFound)
}

func TestBucket_DeleteBatch(t *testing.T) {
	var got *s3.DeleteObjectsInput
	mock := &testutil.MockS3Client{
		DeleteObjectsFunc: func(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
			got = in
			return &s3.DeleteObjectsOutput{}, nil
		},
		DeleteObjectFunc: func(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
			t.Fatal("single delete must not be used")
			return nil, nil
		},
	}

	err := NewWithClient(mock, "bcr").Delete(context.Background(), []string{"modules/a", "modules/b"})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Delete.Objects, 2)
	assert.Equal(t, "modules/a", aws.ToString(got.Delete.Objects[0].Key))
	assert.True(t, aws.ToBool(got.Delete.Quiet))
}

func TestBucket_DeletePerKeyErrors(t *testing.T) {
	mock := &testutil.MockS3Client{
		DeleteObjectsFunc: func(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
			return &s3.DeleteObjectsOutput{
				Errors: []types.Error{
					{Key: aws.String("modules/gone"), Code: aws.String("NoSuchKey")},
					{Key: aws.String("modules/a"), Code: aws.String("InternalError"), Message: aws.String("try again")},
					{Key: aws.String("modules/b"), Code: aws.String("AccessDenied"), Message: aws.String("denied")},
				},
			}, nil
		},
	}

	err := NewWithClient(mock, "bcr").Delete(context.Background(), []string{"modules/gone", "modules/a", "modules/b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
	assert.Contains(t, err.Error(), "modules/a: InternalError: try again")
	assert.Contains(t, err.Error(), "modules/b: AccessDenied: denied")
	assert.NotContains(t, err.Error(), "modules/gone")
}

func TestBucket_DeleteSingleObject(t *testing.T) {
	var keys []string
	mock := &testutil.MockS3Client{
		DeleteObjectFunc: func(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
			keys = append(keys, aws.ToString(in.Key))
			if aws.ToString(in.Key) == "modules/missing" {
				return nil, &statusError{code: 404}
			}
			return &s3.DeleteObjectOutput{}, nil
		},
	}

	b := NewWithClient(mock, "bcr", WithSingleObjectDelete(true))
	err := b.Delete(context.Background(), []string{"modules/a", "modules/missing", "modules/b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"modules/a", "modules/missing", "modules/b"}, keys)
}

func TestBucket_DeleteSingleObjectStopsOnFirstError(t *testing.T) {
	var keys []string
	mock := &testutil.MockS3Client{
		DeleteObjectFunc: func(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
			keys = append(keys, aws.ToString(in.Key))
			return nil, &smithy.GenericAPIError{Code: "AccessDenied"}
		},
	}

	b := NewWithClient(mock, "bcr", WithSingleObjectDelete(true))
	err := b.Delete(context.Background(), []string{"modules/a", "modules/b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrAccessDenied)
	assert.Equal(t, []string{"modules/a"}, keys)
}

func TestBucket_DeleteLimits(t *testing.T) {
	mock := &testutil.MockS3Client{
		DeleteObjectsFunc: func(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
			t.Fatal("no request expected")
			return nil, nil
		},
	}
	b := NewWithClient(mock, "bcr")

	assert.NoError(t, b.Delete(context.Background(), nil))

	keys := make([]string, storage.MaxDeleteBatch+1)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%d", i)
	}
	assert.ErrorIs(t, b.Delete(context.Background(), keys), storage.ErrInvalidInput)
}

func TestNew(t *testing.T) {
	cfg := aws.Config{}

	t.Run("requires name", func(t *testing.T) {
		_, err := New(context.Background(), "", WithAWSConfig(&cfg))
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})

	t.Run("gcs endpoint uses single deletes", func(t *testing.T) {
		b, err := New(context.Background(), "bcr", WithAWSConfig(&cfg), WithEndpoint(GCSEndpoint))
		require.NoError(t, err)
		assert.True(t, b.singleDelete)
		assert.Equal(t, "bcr", b.Name())
	})

	t.Run("explicit override", func(t *testing.T) {
		b, err := New(context.Background(), "bcr",
			WithAWSConfig(&cfg), WithEndpoint(GCSEndpoint), WithSingleObjectDelete(false))
		require.NoError(t, err)
		assert.False(t, b.singleDelete)
	})

	t.Run("default endpoint", func(t *testing.T) {
		b, err := New(context.Background(), "bcr", WithAWSConfig(&cfg), WithRegion("eu-west-1"))
		require.NoError(t, err)
		assert.False(t, b.singleDelete)
	})
}

func TestIsGCSEndpoint(t *testing.T) {
	assert.True(t, isGCSEndpoint("https://storage.googleapis.com"))
	assert.True(t, isGCSEndpoint("https://storage.googleapis.com/"))
	assert.False(t, isGCSEndpoint("http://localhost:4566"))
	assert.False(t, isGCSEndpoint(""))
}
