package storage

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, "http://localhost:8080/")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "proofs/7", []byte("jpegdata"), "image/jpeg")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8080/uploads/proofs/7/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	key := strings.TrimPrefix(url, "http://localhost:8080/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(data))

	require.NoError(t, store.Delete(context.Background(), url))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// deleting twice is fine
	assert.NoError(t, store.Delete(context.Background(), url))
}

func TestLocalDeleteIgnoresForeignURL(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	assert.NoError(t, store.Delete(context.Background(), "https://i.ibb.co/abc/proof.jpg"))
}

func TestLocalDeleteRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	err = store.Delete(context.Background(), "http://localhost:8080/uploads/../../etc/passwd")
	assert.Error(t, err)
}

func TestLocalPutRejectsEmpty(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "proofs", nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyArtifact)
}

func TestObjectKeyExtensions(t *testing.T) {
	assert.True(t, strings.HasSuffix(objectKey("p", "video/quicktime"), ".mov"))
	assert.True(t, strings.HasSuffix(objectKey("p", "video/x-msvideo"), ".avi"))
	assert.True(t, strings.HasPrefix(objectKey("/a/../b/", "image/png"), "b/"))
	assert.False(t, strings.Contains(objectKey("", "image/png"), "/"))
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3PutAndDelete(t *testing.T) {
	client := &fakeS3{}
	store := newS3WithClient(client, "proofs", "https://proofs.sgp1.cdn.example.com/")

	url, err := store.Put(context.Background(), "proofs/3", []byte("mp4"), "video/mp4")
	require.NoError(t, err)
	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "proofs", *put.Bucket)
	assert.Equal(t, "video/mp4", *put.ContentType)
	assert.Equal(t, "https://proofs.sgp1.cdn.example.com/"+*put.Key, url)

	require.NoError(t, store.Delete(context.Background(), url))
	require.Len(t, client.deletes, 1)
	assert.Equal(t, *put.Key, *client.deletes[0].Key)

	require.NoError(t, store.Delete(context.Background(), "https://elsewhere.example.com/x.jpg"))
	assert.Len(t, client.deletes, 1)
}

type scriptedStore struct {
	errs  []error
	calls int
}

func (s *scriptedStore) Put(ctx context.Context, _ string, _ []byte, _ string) (string, error) {
	s.calls++
	if len(s.errs) >= s.calls && s.errs[s.calls-1] != nil {
		return "", s.errs[s.calls-1]
	}
	return "https://cdn.example.com/ok.jpg", nil
}

func (s *scriptedStore) Delete(context.Context, string) error { return nil }

func refused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
}

func TestRetryingRetriesTransient(t *testing.T) {
	next := &scriptedStore{errs: []error{refused(), io.ErrUnexpectedEOF}}
	r := &Retrying{Next: next, Retries: 2, Backoff: time.Millisecond}

	url, err := r.Put(context.Background(), "proofs", []byte("x"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/ok.jpg", url)
	assert.Equal(t, 3, next.calls)
}

func TestRetryingGivesUpAfterLimit(t *testing.T) {
	next := &scriptedStore{errs: []error{refused(), refused(), refused(), refused()}}
	r := &Retrying{Next: next, Retries: 2, Backoff: time.Millisecond}

	_, err := r.Put(context.Background(), "proofs", []byte("x"), "image/png")
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Equal(t, 3, next.calls)
}

func TestRetryingDoesNotRetryTimeoutOrPermanent(t *testing.T) {
	next := &scriptedStore{errs: []error{context.DeadlineExceeded}}
	r := &Retrying{Next: next, Retries: 2, Backoff: time.Millisecond}
	_, err := r.Put(context.Background(), "proofs", []byte("x"), "image/png")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, next.calls)

	next = &scriptedStore{errs: []error{errors.New("access denied")}}
	r.Next = next
	_, err = r.Put(context.Background(), "proofs", []byte("x"), "image/png")
	assert.EqualError(t, err, "access denied")
	assert.Equal(t, 1, next.calls)
}

type slowStore struct{}

func (slowStore) Put(ctx context.Context, _ string, _ []byte, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowStore) Delete(context.Context, string) error { return nil }

func TestRetryingBoundsEachAttempt(t *testing.T) {
	r := &Retrying{Next: slowStore{}, Timeout: 20 * time.Millisecond, Retries: 3, Backoff: time.Millisecond}

	start := time.Now()
	_, err := r.Put(context.Background(), "proofs", []byte("x"), "image/png")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(refused()))
	assert.True(t, IsTransient(syscall.ECONNRESET))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("bad request")))
}
