package rembg

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opaque(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

// fakeServer 模拟 rembg 服务，把上传图片左半边的 alpha 清零
func fakeServer(t *testing.T, wantModel string, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/api/remove" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("model"); got != wantModel {
			http.Error(w, "unexpected model "+got, http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()

		src, err := png.Decode(f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out := toNRGBA(src)
		b := out.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Min.X+b.Dx()/2; x++ {
				c := out.NRGBAAt(x, y)
				c.A = 0
				out.SetNRGBA(x, y, c)
			}
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, out)
	}))
}

func TestHTTPRemover_Remove(t *testing.T) {
	var calls int32
	srv := fakeServer(t, "u2net_cloth_seg", &calls)
	defer srv.Close()

	r := NewHTTPRemover(srv.URL+"/", "u2net_cloth_seg", time.Second)
	assert.Equal(t, "u2net_cloth_seg", r.Model())

	got, err := r.Remove(context.Background(), opaque(4, 2))
	require.NoError(t, err)

	nrgba, ok := got.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 4, 2), nrgba.Bounds())
	assert.Equal(t, uint8(0), nrgba.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(255), nrgba.NRGBAAt(3, 1).A)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPRemover_DefaultModel(t *testing.T) {
	var calls int32
	srv := fakeServer(t, DefaultModel, &calls)
	defer srv.Close()

	_, err := NewHTTPRemover(srv.URL, "", 0).Remove(context.Background(), opaque(2, 2))
	require.NoError(t, err)
}

func TestHTTPRemover_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model crashed", http.StatusInternalServerError)
			},
			want: "status 500",
		},
		{
			name: "not a png",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			want: "decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPRemover(srv.URL, "u2net", time.Second).Remove(context.Background(), opaque(2, 2))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRemoval)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHTTPRemover_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPRemover(url, "u2net", time.Second).Remove(context.Background(), opaque(2, 2))
	assert.ErrorIs(t, err, ErrRemoval)
}

func TestHTTPRemover_Warmup(t *testing.T) {
	var calls int32
	srv := fakeServer(t, "u2net", &calls)
	defer srv.Close()

	r := NewHTTPRemover(srv.URL, "u2net", time.Second)
	require.NoError(t, r.Warmup(context.Background()))
	require.NoError(t, r.Warmup(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	var _ Warmer = r
}

func TestPassthrough(t *testing.T) {
	src := opaque(3, 3)
	got, err := NewPassthrough().Remove(context.Background(), src)
	require.NoError(t, err)

	nrgba, ok := got.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, nrgba.NRGBAAt(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPassthrough().Remove(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForm(t *testing.T) {
	r := NewHTTPRemover("http://example.invalid", "isnet-general-use", time.Second)
	body, contentType, err := r.form(opaque(1, 1))
	require.NoError(t, err)
	assert.Contains(t, contentType, "multipart/form-data; boundary=")
	assert.True(t, bytes.Contains(body.Bytes(), []byte(`name="model"`)))
	assert.True(t, bytes.Contains(body.Bytes(), []byte("isnet-general-use")))
	assert.True(t, bytes.Contains(body.Bytes(), []byte(`filename="image.png"`)))
}
