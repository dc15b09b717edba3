package s3stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3Client struct {
	lastInput *s3.PutObjectInput
	err       error
}

func (f *fakeS3Client) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestMirrorFile_PutsObjectUnderPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.fits")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	client := &fakeS3Client{}
	stage := New(client, "my-bucket", "captures")

	err := stage.MirrorFile(context.Background(), "task-1.fits", path)
	require.NoError(t, err)

	require.NotNil(t, client.lastInput)
	assert.Equal(t, "my-bucket", *client.lastInput.Bucket)
	assert.Equal(t, "captures/task-1.fits", *client.lastInput.Key)
}

func TestMirrorFile_NoPrefixUsesBareKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.fits")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	client := &fakeS3Client{}
	stage := New(client, "my-bucket", "")

	err := stage.MirrorFile(context.Background(), "task-1.fits", path)
	require.NoError(t, err)
	assert.Equal(t, "task-1.fits", *client.lastInput.Key)
}

func TestMirrorFile_MissingLocalFileReturnsError(t *testing.T) {
	stage := New(&fakeS3Client{}, "my-bucket", "")
	err := stage.MirrorFile(context.Background(), "k", "/nonexistent/path.fits")
	assert.Error(t, err)
}
