//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

// 需要 Docker
func TestS3Store_LocalStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := localstack.Run(ctx, "localstack/localstack:3.0.2",
		testcontainers.WithEnv(map[string]string{"SERVICES": "s3"}),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "http")
	require.NoError(t, err)

	client, err := NewS3Client(ctx, S3Options{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		UsePathStyle:    true,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("uploads")})
	require.NoError(t, err)

	store := NewS3Store(client, 1<<20)

	_, err = store.Get(ctx, "uploads", "closet/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "uploads", "closet/processed/a.png", []byte("png-bytes"), "image/png"))

	got, err := store.Get(ctx, "uploads", "closet/processed/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)
}
