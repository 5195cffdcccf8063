package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"sglocations.io/ner/types"
)

func newModelServer(t *testing.T, status int, payload string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Text)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRecognizeWithoutOffsets(t *testing.T) {
	server := newModelServer(t, http.StatusOK, `{"entities": [
		{"entity": "Maxwell Road", "label": "LOC"},
		{"entity": "Maxwell Road", "label": "LOC"},
		{"entity": "Jurong", "label": "GPE"}
	]}`)

	client := New("dcn", types.RemoteParams{URL: server.URL})
	require.Equal(t, "dcn", client.Name())

	entities, err := client.Recognize(context.Background(), "Maxwell Road and Maxwell Road, Café Jurong")
	require.NoError(t, err)

	expected := []types.Entity{
		{Text: "Maxwell Road", Label: "LOC", Begin: 0, End: 12},
		{Text: "Maxwell Road", Label: "LOC", Begin: 17, End: 29},
		{Text: "Jurong", Label: "GPE", Begin: 36, End: 42},
	}
	if diff := cmp.Diff(expected, entities); diff != "" {
		t.Errorf("unexpected entities (-want +got):\n%s", diff)
	}
}

func TestRecognizeWithOffsets(t *testing.T) {
	server := newModelServer(t, http.StatusOK, `{"entities": [{"entity": "Bishan", "label": "GPE", "start": 8, "end": 14}]}`)

	entities, err := New("std", types.RemoteParams{URL: server.URL, MaxRequestsPerSecond: 10}).
		Recognize(context.Background(), "meet at Bishan")
	require.NoError(t, err)
	require.Equal(t, []types.Entity{{Text: "Bishan", Label: "GPE", Begin: 8, End: 14}}, entities)
}

func TestRecognizeSearchesMisalignedOffsets(t *testing.T) {
	server := newModelServer(t, http.StatusOK, `{"entities": [
		{"entity": "Bishan", "label": "GPE", "start": 9, "end": 15},
		{"entity": "Jurong", "label": "GPE", "start": 30, "end": 90}
	]}`)

	entities, err := New("std", types.RemoteParams{URL: server.URL}).
		Recognize(context.Background(), "Café at Bishan and Jurong")
	require.NoError(t, err)
	expected := []types.Entity{
		{Text: "Bishan", Label: "GPE", Begin: 8, End: 14},
		{Text: "Jurong", Label: "GPE", Begin: 19, End: 25},
	}
	if diff := cmp.Diff(expected, entities); diff != "" {
		t.Errorf("unexpected entities (-want +got):\n%s", diff)
	}
}

func TestRecognizeDropsUnknownText(t *testing.T) {
	server := newModelServer(t, http.StatusOK, `{"entities": [{"entity": "Sentosa", "label": "GPE"}]}`)

	entities, err := New("std", types.RemoteParams{URL: server.URL}).Recognize(context.Background(), "meet at Bishan")
	require.NoError(t, err)
	require.Empty(t, entities)
}

func TestRecognizeErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		server := newModelServer(t, http.StatusInternalServerError, `oops`)
		_, err := New("std", types.RemoteParams{URL: server.URL}).Recognize(context.Background(), "Bishan")
		require.True(t, errors.Is(err, ErrUnexpectedStatus), "got %v", err)
	})

	t.Run("body", func(t *testing.T) {
		server := newModelServer(t, http.StatusOK, `not json`)
		_, err := New("std", types.RemoteParams{URL: server.URL}).Recognize(context.Background(), "Bishan")
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New("std", types.RemoteParams{URL: "http://127.0.0.1:1", MaxRequestsPerSecond: 1}).Recognize(ctx, "Bishan")
		require.Error(t, err)
	})
}
