// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "opsmon"
	minioPassword = "opsmon-secret"
	minioPort     = nat.Port("9000/tcp")
)

// startMinIO runs a MinIO server and returns its endpoint.
func startMinIO(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-01-16T16-07-38Z",
			ExposedPorts: []string{string(minioPort)},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort(minioPort),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("failed to start MinIO: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate MinIO: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, minioPort)
	require.NoError(t, err)
	return "http://" + host + ":" + port.Port()
}

func TestS3Store(t *testing.T) {
	endpoint := startMinIO(t)
	ctx := context.Background()

	store, err := NewS3(ctx, S3Config{
		Bucket:       "probes",
		Region:       "us-east-1",
		Endpoint:     endpoint,
		UsePathStyle: true,
		Prefix:       "opsmon",
		Options: []func(*awsconfig.LoadOptions) error{
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(minioUser, minioPassword, "")),
		},
	})
	require.NoError(t, err)

	require.Error(t, store.HeadBucket(ctx))
	_, err = store.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("probes")})
	require.NoError(t, err)
	require.NoError(t, store.HeadBucket(ctx))

	payload := []byte("transfer probe payload")
	require.NoError(t, store.Put(ctx, "a/b.bin", payload))

	got, err := store.Get(ctx, "a/b.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, store.Delete(ctx, "a/b.bin"))
	_, err = store.Get(ctx, "a/b.bin")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, "a/b.bin"))
}
