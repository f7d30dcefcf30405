package mlclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictUploadsImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(file)
		assert.Equal(t, "jpegbytes", string(data))
		assert.Equal(t, "photo.jpg", header.Filename)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"issue_category":"dirty_toilet","confidence":0.93,"all_probs":{"dirty_toilet":0.93,"trash":0.07}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second)
	pred, err := client.Predict(context.Background(), []byte("jpegbytes"), "photo.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "dirty_toilet", pred.Label)
	assert.InDelta(t, 0.93, pred.Confidence, 0.0001)
	assert.Len(t, pred.AllProbs, 2)
}

func TestPredictModelNotLoaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"ML model not loaded","issue_category":null,"confidence":0}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Predict(context.Background(), []byte("x"), "a.png", "image/png")
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestPredictServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Predict(context.Background(), []byte("x"), "a.png", "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
