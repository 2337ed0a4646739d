package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(Options{APIKey: "test-key", BaseURL: ts.URL, HTTPClient: ts.Client()})
}

func imageResponse(data []byte) generateContentResponse {
	return generateContentResponse{Candidates: []candidate{{
		Content: content{Parts: []part{
			{Text: "here you go"},
			{InlineData: &blob{Data: base64.StdEncoding.EncodeToString(data), MimeType: "image/png"}},
		}},
	}}}
}

func TestEditImageSendsTemplateAndConfig(t *testing.T) {
	var captured generateContentRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "/v1beta/models/"+DefaultImageModel+":generateContent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(imageResponse([]byte("edited")))
	})

	res, err := client.EditImage(context.Background(), EditRequest{
		Prompt:      "Edit this image with snow",
		Image:       []byte("template"),
		MimeType:    "image/png",
		AspectRatio: "9:16",
		Resolution:  "1K",
	})

	require.NoError(t, err)
	require.Len(t, res.Images, 1)
	assert.Equal(t, []byte("edited"), res.Images[0].Data)
	assert.Equal(t, "here you go", res.Text)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "Edit this image with snow", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("template")), parts[1].InlineData.Data)
	assert.Equal(t, []string{"IMAGE"}, captured.GenerationConfig.ResponseModalities)
	require.NotNil(t, captured.GenerationConfig.ImageConfig)
	assert.Equal(t, "9:16", captured.GenerationConfig.ImageConfig.AspectRatio)
	assert.Equal(t, "1K", captured.GenerationConfig.ImageConfig.ImageSize)
}

func TestEditImageTextOnlyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateContentResponse{Candidates: []candidate{{
			Content: content{Parts: []part{{Text: "I cannot edit this"}}},
		}}})
	})

	res, err := client.EditImage(context.Background(), EditRequest{Prompt: "p", Image: []byte("t")})

	require.NoError(t, err)
	assert.Empty(t, res.Images)
	assert.Equal(t, "I cannot edit this", res.Text)
}

func TestEditImageAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	})

	_, err := client.EditImage(context.Background(), EditRequest{Prompt: "p", Image: []byte("t")})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestEditImageDropsUnknownImageSize(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if atomic.AddInt32(&calls, 1) == 1 {
			assert.Equal(t, "2K", req.GenerationConfig.ImageConfig.ImageSize)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`Invalid JSON payload received. Unknown name "imageSize"`))
			return
		}
		assert.Empty(t, req.GenerationConfig.ImageConfig.ImageSize)
		_ = json.NewEncoder(w).Encode(imageResponse([]byte("ok")))
	})

	res, err := client.EditImage(context.Background(), EditRequest{Prompt: "p", Image: []byte("t"), Resolution: "2K"})

	require.NoError(t, err)
	assert.Len(t, res.Images, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestEditImageValidatesInput(t *testing.T) {
	client := New(Options{HTTPClient: http.DefaultClient})

	_, err := client.EditImage(context.Background(), EditRequest{Image: []byte("t")})
	assert.Error(t, err)

	_, err = client.EditImage(context.Background(), EditRequest{Prompt: "p"})
	assert.Error(t, err)
}

func TestEditImageNilHTTPClient(t *testing.T) {
	client := New(Options{})
	_, err := client.EditImage(context.Background(), EditRequest{Prompt: "p", Image: []byte("t")})
	assert.EqualError(t, err, "http client is nil")
}

func TestGeneratePromptsReturnsRawText(t *testing.T) {
	raw := "```python\n['Edit this image a', 'Edit this image b']\n```"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, DefaultTextModel+":generateContent"))
		var req generateContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Contains(t, req.SystemInstruction.Parts[0].Text, "exactly 12 prompts")
		assert.Equal(t, "star wars", req.Contents[0].Parts[0].Text)
		_ = json.NewEncoder(w).Encode(generateContentResponse{Candidates: []candidate{{
			Content: content{Parts: []part{{Text: raw}}},
		}}})
	})

	got, err := client.GeneratePrompts(context.Background(), "  star wars ")

	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestGeneratePromptsEmptyTheme(t *testing.T) {
	client := New(Options{HTTPClient: http.DefaultClient})
	_, err := client.GeneratePrompts(context.Background(), " ")
	assert.Error(t, err)
}
