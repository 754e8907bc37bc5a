package upload

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"portal-rest-api/internal/model"
	"portal-rest-api/internal/retry"
	"portal-rest-api/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	calls int
	names []string
	err   error
	url   string
}

func (s *fakeStore) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.names = append(s.names, name)
	if s.err != nil {
		return "", s.err
	}
	if s.url != "" {
		return s.url, nil
	}
	return "https://cdn.example.com/" + bucket + "/" + name, nil
}

type fakeVerifier struct {
	calls int
	err   error
}

func (v *fakeVerifier) Verify(ctx context.Context, url string) error {
	v.calls++
	return v.err
}

type memoryLogs struct {
	mu      sync.Mutex
	entries []model.UploadLog
}

func (m *memoryLogs) InsertUploadLog(ctx context.Context, log *model.UploadLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *log)
	return nil
}

func (m *memoryLogs) GetUploadLogs(ctx context.Context, limit, offset int) ([]model.UploadLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, int64(len(m.entries)), nil
}

func (m *memoryLogs) Close() error { return nil }

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestPipeline(store storage.ObjectStore, verifier Verifier, opts ...Option) *Pipeline {
	executor := retry.New(retry.Config{Name: "Upload", Sleep: noSleep})
	return NewPipeline(store, executor, verifier, DefaultConfig(), opts...)
}

// testJPEG encodes a w×h gradient and pads it with trailing bytes to size.
// Decoders stop at the end-of-image marker, so the padding is ignored.
func testJPEG(t *testing.T, w, h, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	data := buf.Bytes()
	if len(data) < size {
		data = append(data, make([]byte, size-len(data))...)
	}
	return data
}

func decodeDataURL(t *testing.T, url string) (string, image.Image) {
	t.Helper()
	require.True(t, strings.HasPrefix(url, "data:"))
	header, payload, ok := strings.Cut(strings.TrimPrefix(url, "data:"), ";base64,")
	require.True(t, ok)
	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return header, img
}

func TestUpload_OversizedFileIsRejectedWithoutNetwork(t *testing.T) {
	store := &fakeStore{}
	verifier := &fakeVerifier{}
	p := newTestPipeline(store, verifier)

	result := p.Upload(context.Background(), File{
		Name:        "huge.jpg",
		ContentType: "image/jpeg",
		Data:        make([]byte, 10<<20),
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "10 MiB")
	assert.Contains(t, result.Error, "5.0 MiB")
	assert.Empty(t, result.URL)
	assert.Equal(t, 0, store.calls)
	assert.Equal(t, 0, verifier.calls)
}

func TestUpload_DisallowedTypeIsRejected(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(store, nil)

	result := p.Upload(context.Background(), File{
		Name:        "notes.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "image/jpeg")
	assert.Equal(t, 0, store.calls)
}

func TestUpload_StoreFailureDegradesToInline(t *testing.T) {
	store := &fakeStore{err: &storage.HTTPError{Op: "upload", StatusCode: http.StatusServiceUnavailable}}
	p := newTestPipeline(store, &fakeVerifier{})

	data := testJPEG(t, 1600, 900, 2<<20)
	result := p.Upload(context.Background(), File{Name: "photo.jpg", ContentType: "image/jpeg", Data: data})

	assert.True(t, result.Success)
	assert.Equal(t, model.StorageInline, result.StorageMedium)
	assert.NotEmpty(t, result.URL)
	assert.Equal(t, retry.DefaultMaxAttempts, store.calls)

	mediaType, img := decodeDataURL(t, result.URL)
	assert.Equal(t, "image/jpeg", mediaType)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 675, img.Bounds().Dy())
	assert.Less(t, len(result.URL), len(data))
}

func TestUpload_NonRetryableStoreFailureTriesOnce(t *testing.T) {
	store := &fakeStore{err: &storage.HTTPError{Op: "upload", StatusCode: http.StatusForbidden}}
	p := newTestPipeline(store, nil)

	result := p.Upload(context.Background(), File{Name: "a.jpg", ContentType: "image/jpeg", Data: testJPEG(t, 64, 64, 0)})

	assert.True(t, result.Success)
	assert.Equal(t, model.StorageInline, result.StorageMedium)
	assert.Equal(t, 1, store.calls)
}

func TestUpload_VerifyFailureDegradesToInline(t *testing.T) {
	store := &fakeStore{}
	verifier := &fakeVerifier{err: &storage.HTTPError{Op: "verify", StatusCode: http.StatusNotFound}}
	p := newTestPipeline(store, verifier)

	result := p.Upload(context.Background(), File{Name: "a.jpg", ContentType: "image/jpeg", Data: testJPEG(t, 64, 64, 0)})

	assert.True(t, result.Success)
	assert.Equal(t, model.StorageInline, result.StorageMedium)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 1, verifier.calls)
}

func TestUpload_RemoteSuccess(t *testing.T) {
	store := &fakeStore{}
	logs := &memoryLogs{}
	now := time.UnixMilli(1700000000123)
	p := newTestPipeline(store, &fakeVerifier{}, WithUploadLog(logs), WithClock(func() time.Time { return now }))

	result := p.Upload(context.Background(), File{
		Name:        "Harbour View.PNG",
		ContentType: "image/png",
		Data:        testPNG(t),
		UploadedBy:  "admin",
	})
	p.Wait()

	require.True(t, result.Success)
	assert.Equal(t, model.StorageRemote, result.StorageMedium)
	require.Len(t, store.names, 1)
	assert.Regexp(t, `^1700000000123-[0-9a-f]{8}\.png$`, store.names[0])
	assert.Equal(t, "https://cdn.example.com/images/"+store.names[0], result.URL)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, "success", logs.entries[0].Status)
	assert.Equal(t, model.StorageRemote, logs.entries[0].StorageMedium)
	assert.Equal(t, "admin", logs.entries[0].UploadedBy)
}

func TestUpload_SniffsMissingContentType(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(store, nil)

	result := p.Upload(context.Background(), File{Name: "blob", Data: testPNG(t)})

	require.True(t, result.Success)
	assert.Equal(t, model.StorageRemote, result.StorageMedium)
	assert.True(t, strings.HasSuffix(store.names[0], ".png"))
}

func TestUpload_UndecodableImageInlinesOriginal(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset by peer")}
	p := newTestPipeline(store, nil)

	// Declared as webp but not decodable.
	data := []byte("RIFF\x00\x00\x00\x00WEBPVP8 garbage")
	result := p.Upload(context.Background(), File{Name: "x.webp", ContentType: "image/webp", Data: data})

	require.True(t, result.Success)
	assert.Equal(t, model.StorageInline, result.StorageMedium)
	assert.Equal(t, "data:image/webp;base64,"+base64.StdEncoding.EncodeToString(data), result.URL)
}

func TestUpload_TimeoutCancelsSlowStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	config := DefaultConfig()
	config.Timeout = 100 * time.Millisecond
	executor := retry.New(retry.Config{Name: "Upload", Sleep: noSleep})
	p := NewPipeline(storage.NewHTTPStore(srv.URL, "", srv.Client()), executor, nil, config)

	start := time.Now()
	result := p.Upload(context.Background(), File{Name: "a.jpg", ContentType: "image/jpeg", Data: testJPEG(t, 32, 32, 0)})

	assert.True(t, result.Success)
	assert.Equal(t, model.StorageInline, result.StorageMedium)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHEADVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := HEADVerifier{Client: srv.Client()}
	assert.NoError(t, v.Verify(context.Background(), srv.URL+"/ok.png"))

	err := v.Verify(context.Background(), srv.URL+"/missing.png")
	var httpErr *storage.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// noisePNG is w×h random pixels, which compress poorly in any format.
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// hugeGrayPNG is a valid all-black w×h grayscale PNG. The pixel stream is
// compressed row by row so the test never holds the bitmap.
func hugeGrayPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")

	chunk := func(typ string, data []byte) {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(data)))
		out.Write(length[:])
		crc := crc32.NewIEEE()
		crc.Write([]byte(typ))
		crc.Write(data)
		out.WriteString(typ)
		out.Write(data)
		var sum [4]byte
		binary.BigEndian.PutUint32(sum[:], crc.Sum32())
		out.Write(sum[:])
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale
	chunk("IHDR", ihdr)

	var idat bytes.Buffer
	zw, err := zlib.NewWriterLevel(&idat, zlib.BestCompression)
	require.NoError(t, err)
	row := make([]byte, w+1)
	for y := 0; y < h; y++ {
		_, err := zw.Write(row)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	chunk("IDAT", idat.Bytes())
	chunk("IEND", nil)
	return out.Bytes()
}

func TestUpload_InlineFallbackFitsCeiling(t *testing.T) {
	store := &fakeStore{err: &storage.HTTPError{Op: "upload", StatusCode: http.StatusServiceUnavailable}}
	config := DefaultConfig()
	config.MaxInlineBytes = 200 << 10
	executor := retry.New(retry.Config{Name: "Upload", Sleep: noSleep})
	p := NewPipeline(store, executor, nil, config)

	data := noisePNG(t, 800, 800)
	require.Less(t, len(data), int(config.MaxBytes))

	result := p.Upload(context.Background(), File{Name: "noise.png", ContentType: "image/png", Data: data})

	require.True(t, result.Success)
	assert.Equal(t, model.StorageInline, result.StorageMedium)
	assert.LessOrEqual(t, len(result.URL), config.MaxInlineBytes)
	mediaType, img := decodeDataURL(t, result.URL)
	assert.Equal(t, "image/jpeg", mediaType)
	assert.LessOrEqual(t, img.Bounds().Dx(), 800)
}

func TestUpload_TallImageIsCappedInHeight(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	p := newTestPipeline(store, nil)

	result := p.Upload(context.Background(), File{Name: "tall.jpg", ContentType: "image/jpeg", Data: testJPEG(t, 100, 3000, 0)})

	require.True(t, result.Success)
	_, img := decodeDataURL(t, result.URL)
	assert.Equal(t, 1600, img.Bounds().Dy())
	assert.Equal(t, 53, img.Bounds().Dx())
}

func TestUpload_OverPixelBudgetInlinesOriginalWithoutDecoding(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	p := newTestPipeline(store, nil)

	// 64 megapixels in well under a megabyte.
	data := hugeGrayPNG(t, 8000, 8000)
	require.Less(t, len(data), 1<<20)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	result := p.Upload(context.Background(), File{Name: "huge.png", ContentType: "image/png", Data: data})
	runtime.ReadMemStats(&after)

	require.True(t, result.Success)
	assert.Equal(t, model.StorageInline, result.StorageMedium)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data), result.URL)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
}

func TestMaxDataURLLength(t *testing.T) {
	config := DefaultConfig()
	limit := MaxDataURLLength(config)

	assert.Equal(t, len("data:image/jpeg;base64,")+base64.StdEncoding.EncodedLen(5<<20), limit)

	// The original inlined at the size ceiling is the longest possible URL.
	data := bytes.Repeat([]byte{0xAB}, int(config.MaxBytes))
	assert.LessOrEqual(t, len(dataURL("image/webp", data)), limit)
}
