package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/domain"
	"parley/internal/domain/services"
)

type recordingPutter struct {
	inputs  []*s3.PutObjectInput
	bodies  []string
	deleted []string
}

func (p *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	p.inputs = append(p.inputs, in)
	p.bodies = append(p.bodies, string(data))
	return &s3.PutObjectOutput{}, nil
}

func (p *recordingPutter) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	p.deleted = append(p.deleted, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestS3Store_Put(t *testing.T) {
	putter := &recordingPutter{}
	store := NewS3Store(putter, "bucket", "/tenant-a/", discard())

	key, err := store.Put(context.Background(), 42, services.Upload{
		Filename:    "../notes.txt",
		ContentType: "text/plain",
		Body:        strings.NewReader("hello"),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "tenant-a/messages/42/"), key)
	assert.True(t, strings.HasSuffix(key, "-notes.txt"), key)

	require.Len(t, putter.inputs, 1)
	in := putter.inputs[0]
	assert.Equal(t, "bucket", *in.Bucket)
	assert.Equal(t, key, *in.Key)
	assert.Equal(t, "text/plain", *in.ContentType)
	assert.Equal(t, int64(5), *in.ContentLength)
	assert.Equal(t, "hello", putter.bodies[0])
}

func TestS3Store_Delete(t *testing.T) {
	putter := &recordingPutter{}
	store := NewS3Store(putter, "bucket", "", discard())

	key, err := store.Put(context.Background(), 7, services.Upload{Filename: "a.txt", Body: strings.NewReader("x")})
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), key))
	assert.Equal(t, []string{"bucket/" + key}, putter.deleted)
}

func TestS3Store_PutTooLarge(t *testing.T) {
	putter := &recordingPutter{}
	store := NewS3Store(putter, "bucket", "", discard())
	store.maxBytes = 4

	_, err := store.Put(context.Background(), 1, services.Upload{Filename: "a.bin", Body: strings.NewReader("12345")})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, putter.inputs)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":        "report.pdf",
		"dir/sub/photo.png": "photo.png",
		`C:\Users\x\a.txt`:  "a.txt",
		"":                  "file",
		"..":                "file",
		"bad\nname":         "bad_name",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}

func TestDisabledStore(t *testing.T) {
	var store DisabledStore
	assert.False(t, store.Enabled())
	_, err := store.Put(context.Background(), 1, services.Upload{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, store.Delete(context.Background(), "messages/1/x"))
}
