package rembg

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	nhttp "github.com/chaos-io/cutout/util/http"
	"github.com/chaos-io/cutout/util/http/mocks"
)

func TestHTTPRemover_RequestShape(t *testing.T) {
	ctrl := gomock.NewController(t)
	cli := mocks.NewMockIClient(ctrl)

	cutout := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	cutout.SetNRGBA(1, 1, color.NRGBA{R: 9, A: 255})
	var resp bytes.Buffer
	require.NoError(t, png.Encode(&resp, cutout))

	cli.EXPECT().
		DoHTTPRequest(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *nhttp.RequestParam) error {
			assert.Equal(t, "http://rembg:7000/api/remove", p.RequestURI)
			assert.Equal(t, "POST", p.Method)
			assert.True(t, strings.HasPrefix(p.Header["Content-Type"], "multipart/form-data"))

			out, ok := p.Response.(*[]byte)
			require.True(t, ok)
			*out = resp.Bytes()
			p.StatusCode = 200
			return nil
		})

	r := NewHTTPRemover("http://rembg:7000", "u2net", time.Second, WithClient(cli))
	got, err := r.Remove(context.Background(), opaque(2, 2))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 9, A: 255}, got.(*image.NRGBA).NRGBAAt(1, 1))
	assert.Equal(t, uint8(0), got.(*image.NRGBA).NRGBAAt(0, 0).A)
}

func TestHTTPRemover_ClientError(t *testing.T) {
	ctrl := gomock.NewController(t)
	cli := mocks.NewMockIClient(ctrl)
	cli.EXPECT().DoHTTPRequest(gomock.Any(), gomock.Any()).Return(errors.New("HTTP request failed with status 503: busy"))

	_, err := NewHTTPRemover("http://rembg:7000", "u2net", time.Second, WithClient(cli)).
		Remove(context.Background(), opaque(1, 1))
	require.ErrorIs(t, err, ErrRemoval)
	assert.Contains(t, err.Error(), "status 503")
}
