package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/cutout/event"
	"github.com/chaos-io/cutout/rembg"
	"github.com/chaos-io/cutout/segment"
	"github.com/chaos-io/cutout/storage"
)

type fakeSegmenter struct {
	got []byte
	res *segment.Result
	err error
}

func (f *fakeSegmenter) Process(_ context.Context, raw []byte) (*segment.Result, error) {
	f.got = raw
	return f.res, f.err
}

type fakeWarmer struct {
	calls int32
	err   error
}

func (f *fakeWarmer) Warmup(context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	return f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(":0", &fakeSegmenter{}, quietLogger())
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestID_Propagates(t *testing.T) {
	s := New(":0", &fakeSegmenter{}, quietLogger())
	rec := do(t, s, http.MethodGet, "/healthz", "", map[string]string{"X-Request-Id": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}

func TestSegment_OK(t *testing.T) {
	seg := &fakeSegmenter{res: &segment.Result{
		OK: true, Bucket: "b", InputBucket: "b", InputKey: "closet/a.jpg",
		OutputBucket: "b", OutputKey: "closet/processed/a-1.png", ProcessedKey: "closet/processed/a-1.png",
	}}
	s := New(":0", seg, quietLogger())

	rec := do(t, s, http.MethodPost, "/v1/segment", `{"bucket":"b","key":"closet/a.jpg"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"bucket":"b","key":"closet/a.jpg"}`, string(seg.got))

	var got segment.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *seg.res, got)
}

func TestSegment_ErrorStatus(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  int
		stage string
	}{
		{
			name:  "bad event",
			err:   &segment.StageError{Stage: segment.StageNormalize, Err: event.ErrMissingKey},
			code:  http.StatusBadRequest,
			stage: segment.StageNormalize,
		},
		{
			name:  "missing object",
			err:   &segment.StageError{Stage: segment.StageFetch, Err: storage.ErrNotFound},
			code:  http.StatusNotFound,
			stage: segment.StageFetch,
		},
		{
			name:  "removal",
			err:   &segment.StageError{Stage: segment.StageRemove, Err: rembg.ErrRemoval},
			code:  http.StatusBadGateway,
			stage: segment.StageRemove,
		},
		{
			name:  "store",
			err:   &segment.StageError{Stage: segment.StageStore, Err: errors.New("access denied")},
			code:  http.StatusInternalServerError,
			stage: segment.StageStore,
		},
		{
			name: "untyped",
			err:  errors.New("boom"),
			code: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(":0", &fakeSegmenter{err: tt.err}, quietLogger())
			rec := do(t, s, http.MethodPost, "/v1/segment", `{}`, map[string]string{"X-Request-Id": "rid"})
			require.Equal(t, tt.code, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, "rid", body["requestId"])
			assert.Equal(t, tt.err.Error(), body["error"])
			if tt.stage != "" {
				assert.Equal(t, tt.stage, body["stage"])
			} else {
				assert.NotContains(t, body, "stage")
			}
		})
	}
}

func TestSegment_BodyTooLarge(t *testing.T) {
	seg := &fakeSegmenter{res: &segment.Result{OK: true}}
	s := New(":0", seg, quietLogger())

	body := `{"bucket":"b","key":"` + strings.Repeat("k", maxEventBytes) + `"}`
	rec := do(t, s, http.MethodPost, "/v1/segment", body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, seg.got)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, false, got["ok"])
	assert.Contains(t, got["error"], "exceeds")
}

func TestSegment_BodyAtLimit(t *testing.T) {
	seg := &fakeSegmenter{res: &segment.Result{OK: true}}
	s := New(":0", seg, quietLogger())

	body := strings.Repeat(" ", maxEventBytes)
	rec := do(t, s, http.MethodPost, "/v1/segment", body, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, seg.got, maxEventBytes)
}

func TestSegment_MethodNotAllowed(t *testing.T) {
	s := New(":0", &fakeSegmenter{}, quietLogger())
	rec := do(t, s, http.MethodGet, "/v1/segment", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWarmup(t *testing.T) {
	w := &fakeWarmer{}
	s := New(":0", &fakeSegmenter{}, quietLogger(), WithWarmup(w, "@every 1s"))

	require.NoError(t, s.startWarmup())
	defer s.stopWarmup()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&w.calls) >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestWarmup_FailureIsLogged(t *testing.T) {
	w := &fakeWarmer{err: errors.New("rembg down")}
	s := New(":0", &fakeSegmenter{}, quietLogger(), WithWarmup(w, "@every 1m"))

	s.warmup()
	assert.Equal(t, int32(1), atomic.LoadInt32(&w.calls))
}

func TestWarmup_BadSchedule(t *testing.T) {
	s := New(":0", &fakeSegmenter{}, quietLogger(), WithWarmup(&fakeWarmer{}, "whenever"))
	assert.Error(t, s.startWarmup())
}

func TestRun_Shutdown(t *testing.T) {
	s := New("127.0.0.1:0", &fakeSegmenter{}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
