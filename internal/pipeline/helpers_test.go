package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"selfie-backend/internal/database"
	"selfie-backend/internal/storage"
	"selfie-backend/internal/trainer"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// makeImage builds a data-URI selfie whose decoded payload is size bytes.
// The payload is pseudo-random so it stays incompressible, like a real JPEG.
func makeImage(size int) string {
	data := make([]byte, size)
	rng := rand.New(rand.NewSource(int64(size)))
	rng.Read(data)
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

func makeImages(n, size int) []string {
	images := make([]string, n)
	for i := range images {
		images[i] = makeImage(size)
	}
	return images
}

func createTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

// fakeStore is an in-memory object store with injectable failures. failPut
// fails the write itself; vanish makes the write succeed but the read-back
// verification miss.
type fakeStore struct {
	bucket  string
	failPut func(key string) bool
	vanish  func(key string) bool

	mu      sync.Mutex
	objects map[string][]byte
}

var _ storage.ObjectStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{bucket: "test-training", objects: make(map[string][]byte)}
}

func (s *fakeStore) Bucket() string { return s.bucket }

func (s *fakeStore) CreateBucket(ctx context.Context) error { return nil }

func (s *fakeStore) PutObject(ctx context.Context, key string, data io.Reader) error {
	if s.failPut != nil && s.failPut(key) {
		return io.ErrUnexpectedEOF
	}

	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = content
	return nil
}

func (s *fakeStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.objects[key]
	if !ok {
		return nil, io.EOF
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *fakeStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	if s.vanish != nil && s.vanish(key) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) ListObjects(ctx context.Context, prefix string) ([]storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var objects []storage.Object
	for key, content := range s.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, storage.Object{Name: key, Size: int64(len(content))})
		}
	}
	return objects, nil
}

func (s *fakeStore) DeleteObjects(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
		}
	}
	return nil
}

func (s *fakeStore) ObjectURL(key string) string {
	return "https://storage.test/" + s.bucket + "/" + key
}

func (s *fakeStore) keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

// fakeTrainerAPI serves the three endpoints the trainer client calls, with
// per-endpoint status overrides.
type fakeTrainerAPI struct {
	createStatus   int
	submitStatus   int
	trainingId     string
	trainingStatus string

	mu          sync.Mutex
	createCalls int
	submitCalls int
	lastSubmit  map[string]any
}

func newFakeTrainerAPI() *fakeTrainerAPI {
	return &fakeTrainerAPI{
		createStatus:   http.StatusCreated,
		submitStatus:   http.StatusCreated,
		trainingId:     "train-abc123",
		trainingStatus: "starting",
	}
}

func (f *fakeTrainerAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/models", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.createCalls++
		f.mu.Unlock()
		w.WriteHeader(f.createStatus)
	})

	mux.HandleFunc("POST /v1/models/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.submitCalls++
		f.lastSubmit = body
		f.mu.Unlock()

		w.WriteHeader(f.submitStatus)
		if f.submitStatus < 300 {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": f.trainingId, "status": "starting"})
		}
	})

	mux.HandleFunc("GET /v1/trainings/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":     f.trainingId,
			"status": f.trainingStatus,
		})
	})

	return mux
}

func newTestTrainer(t *testing.T, api *fakeTrainerAPI) *trainer.Client {
	t.Helper()

	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	return trainer.NewClient(trainer.Config{
		BaseURL:    server.URL,
		APIToken:   "test-token",
		ModelOwner: "test-owner",
	})
}
