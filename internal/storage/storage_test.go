package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct{ code string }

func (e *apiError) Error() string { return e.code }
func (e *apiError) ErrorCode() string { return e.code }
func (e *apiError) ErrorMessage() string { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		io.Copy(io.Discard, in.Body)
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func writeFile(t *testing.T, s Store, name, content string) {
	t.Helper()
	w, err := s.Create(context.Background(), name)
	if err != nil {
		t.Fatalf("Create(%s): %v", name, err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func readFile(t *testing.T, s Store, name string) string {
	t.Helper()
	r, err := s.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open(%s): %v", name, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestStores(t *testing.T) {
	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	tests := []struct {
		name  string
		store Store
	}{
		{"local", local},
		{"s3", NewS3(newFakeS3(), "bucket", "")},
		{"s3 prefixed", NewS3(newFakeS3(), "bucket", "robot-1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			name := AudioPath("c1")

			ok, err := tt.store.Exists(ctx, name)
			if err != nil || ok {
				t.Fatalf("Exists before write = %v, %v", ok, err)
			}
			if _, err := tt.store.Open(ctx, name); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("expected os.ErrNotExist, got %v", err)
			}

			writeFile(t, tt.store, name, "RIFF")

			if ok, err := tt.store.Exists(ctx, name); err != nil || !ok {
				t.Errorf("Exists after write = %v, %v", ok, err)
			}
			if got := readFile(t, tt.store, name); got != "RIFF" {
				t.Errorf("read back %q", got)
			}

			writeFile(t, tt.store, name, "RF")
			if got := readFile(t, tt.store, name); got != "RF" {
				t.Errorf("expected overwrite, read back %q", got)
			}
		})
	}
}

func TestS3Store_KeyPrefix(t *testing.T) {
	api := newFakeS3()
	s := NewS3(api, "bucket", "robot-1")

	writeFile(t, s, AudioPath("c1"), "x")

	if _, ok := api.objects["robot-1/audio/c1.wav"]; !ok {
		t.Errorf("expected prefixed key, have %v", api.objects)
	}
}

func TestS3Store_UploadError(t *testing.T) {
	api := newFakeS3()
	api.putErr = errors.New("access denied")
	s := NewS3(api, "bucket", "")

	w, err := s.Create(context.Background(), "a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w.Write([]byte("data"))
	if err := w.Close(); !errors.Is(err, api.putErr) {
		t.Errorf("expected upload error on Close, got %v", err)
	}
}

func TestLocal_RejectsEscapingPaths(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	if _, err := l.Open(context.Background(), "../outside.wav"); err == nil {
		t.Error("expected error for path outside root")
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	if _, err := New(ctx, Config{Backend: BackendLocal, Dir: t.TempDir()}); err != nil {
		t.Errorf("local: %v", err)
	}
	if _, err := New(ctx, Config{Backend: BackendS3, Bucket: "b", Endpoint: "http://localhost:9000"}); err != nil {
		t.Errorf("s3: %v", err)
	}
	if _, err := New(ctx, Config{Backend: BackendS3}); err == nil {
		t.Error("expected error for s3 without bucket")
	}
	if _, err := New(ctx, Config{Backend: "ftp"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestAudioPath(t *testing.T) {
	if got := AudioPath("abc"); got != "audio/abc.wav" {
		t.Errorf("AudioPath = %q", got)
	}
}
