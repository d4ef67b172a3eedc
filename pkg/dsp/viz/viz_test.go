package viz

import (
	"bytes"
	"math"
	"math/cmplx"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestTimeDomainKeepsTail(t *testing.T) {
	tp := NewTimeDomainPlotter("demod", 4)
	require.NoError(t, tp.Receive([]float32{1, 2}))
	assert.Nil(t, tp.Samples())

	img, err := tp.GetImage()
	require.NoError(t, err)
	assert.Nil(t, img)

	require.NoError(t, tp.Receive([]float32{3, 4, 5}))
	assert.Equal(t, []float32{2, 3, 4, 5}, tp.Samples())

	require.NoError(t, tp.Receive([]float32{6, 7, 8, 9, 10, 11}))
	assert.Equal(t, []float32{8, 9, 10, 11}, tp.Samples())

	img, err = tp.GetImage()
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.True(t, bytes.HasPrefix(img.data, pngMagic))
}

func TestFFTPlotterPeak(t *testing.T) {
	const n = 256
	p := NewFFTPlotterComplex("input", n, 48000)

	in := make([]complex64, 3*n)
	for i := range in {
		in[i] = complex64(cmplx.Rect(1, 2*math.Pi*6000*float64(i)/48000))
	}
	require.NoError(t, p.Receive(in[:100]))
	require.NoError(t, p.Receive(in[100:]))

	points := p.Spectrum()
	require.NotEmpty(t, points)
	best := points[0]
	for _, pt := range points {
		if pt.Y > best.Y {
			best = pt
		}
	}
	assert.InDelta(t, 6000, best.X, 48000.0/n)

	assert.Error(t, p.Float().Receive([]float32{1}))
}

func TestFFTPlotterFloat(t *testing.T) {
	p := NewFFTPlotterFloat("audio", 64, 8000)
	assert.Error(t, p.Receive([]complex64{1}))
	in := make([]float32, 100)
	for i := range in {
		in[i] = float32(math.Sin(float64(i)))
	}
	require.NoError(t, p.Float().Receive(in))

	img, err := p.GetImage()
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.True(t, bytes.HasPrefix(img.data, pngMagic))
}

func TestServerRoutes(t *testing.T) {
	s := NewServer(0, 0)
	tp := NewTimeDomainPlotter("01. PLL input", 8)
	require.NoError(t, tp.Receive(make([]float32, 8)))
	s.Register("channel-A", tp)

	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/view/channel-A", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/view/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/view/channel-A", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "graph-0")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/img/channel-A/01.%20PLL%20input", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.Render(true)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/img/channel-A/01.%20PLL%20input", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), pngMagic))
}
