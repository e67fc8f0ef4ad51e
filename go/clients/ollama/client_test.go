package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL)
}

func TestGenerateSendsNonStreamingRequest(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"model":"llama3","response":"the answer","done":true}`))
	})

	response, err := client.Generate(context.Background(), "llama3", "a question")
	require.NoError(t, err)

	assert.Equal(t, "/api/generate", gotPath)
	assert.Equal(t, "llama3", gotBody["model"])
	assert.Equal(t, "a question", gotBody["prompt"])
	assert.Equal(t, false, gotBody["stream"])
	assert.Equal(t, "the answer", response)
}

func TestGenerateServerError(t *testing.T) {
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	_, err := client.Generate(context.Background(), "llama3", "a question")
	assert.Error(t, err)
}

func TestEmbedReturnsVector(t *testing.T) {
	var gotBody map[string]any
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	})

	vector, err := client.Embed(context.Background(), "nomic-embed-text", "some text")
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text", gotBody["model"])
	assert.Equal(t, "some text", gotBody["prompt"])
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vector)
}

func TestEmbedRejectsEmptyVector(t *testing.T) {
	client := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[]}`))
	})

	_, err := client.Embed(context.Background(), "nomic-embed-text", "some text")
	assert.ErrorContains(t, err, "empty embedding")
}
