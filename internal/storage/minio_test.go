package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

// setupMinio starts a MinIO container and returns its endpoint
func setupMinio(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcminio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return endpoint
}

func TestObjectStores_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	endpoint := setupMinio(t)
	ctx := context.Background()
	bucket := "sedconv-test-" + uuid.New().String()[:8]

	// The MinIO store creates the bucket; the S3 service reuses it.
	minioStore, err := NewMinioStore(ctx, MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    bucket,
		Prefix:    "runs",
	})
	require.NoError(t, err)

	s3Store, err := NewS3Service(ctx, S3Config{
		Bucket:    bucket,
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Prefix:    "runs",
	})
	require.NoError(t, err)

	stores := map[string]ArtifactStore{"minio": minioStore, "s3": s3Store}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			key := name + "/manifest.yaml"
			require.NoError(t, store.Put(ctx, key, ContentTypeYAML, []byte("family: s-pbhmi\n")))

			data, err := store.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "family: s-pbhmi\n", string(data))

			assert.Contains(t, store.Location(key), bucket+"/runs/"+key)
			require.NoError(t, store.Delete(ctx, key))

			assert.Error(t, store.Put(ctx, key, "image/png", []byte{1}))
		})
	}
}
