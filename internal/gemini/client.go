package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	DefaultImageModel = "gemini-3-pro-image-preview"
	DefaultTextModel  = "gemini-2.5-flash"
)

const promptGeneratorInstruction = `You are an expert creative prompt generator for image editing.
Your goal is to generate a list of exactly 12 prompts for editing a set of calendar images based on a user-provided theme.

Follow these strict guidelines for each prompt:
1. Start with "Edit this image": every prompt must begin with this phrase.
2. Background only: focus on editing the background to match the theme.
3. Preserve text: state that the existing text content (dates, months) must remain as is.
4. Font adaptation: you may suggest changing the font style, color, or visibility to keep contrast and thematic consistency.
5. You do not edit images yourself; you only write the text prompts for an image editor.

Output format:
Return a list of strings, e.g. ["Edit this image...", "Edit this image...", ...].`

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	ImageModel string
	TextModel  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	imageModel string
	textModel  string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = DefaultImageModel
	}

	textModel := strings.TrimSpace(opts.TextModel)
	if textModel == "" {
		textModel = DefaultTextModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		imageModel: imageModel,
		textModel:  textModel,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// EditImage sends one template plus one prompt to the image model. A single
// call is made; retrying is up to the caller.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (EditResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return EditResult{}, errors.New("prompt is empty")
	}
	if len(req.Image) == 0 {
		return EditResult{}, errors.New("template image is empty")
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	payload := generateContentRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt},
				{InlineData: &blob{
					Data:     base64.StdEncoding.EncodeToString(req.Image),
					MimeType: mimeType,
				}},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig: &imageConfig{
				AspectRatio: strings.TrimSpace(req.AspectRatio),
				ImageSize:   strings.TrimSpace(req.Resolution),
			},
		},
	}

	resp, err := c.generateContent(ctx, c.imageModel, payload)
	if err != nil && payload.GenerationConfig.ImageConfig.ImageSize != "" && isUnknownFieldError(err, "imageSize") {
		c.logger.Warn("image size not supported, retrying without it", "model", c.imageModel)
		payload.GenerationConfig.ImageConfig.ImageSize = ""
		resp, err = c.generateContent(ctx, c.imageModel, payload)
	}
	if err != nil {
		return EditResult{}, err
	}

	return resp, nil
}

// GeneratePrompts asks the text model for calendar edit prompts on a theme
// and returns its raw answer, which is usually a list literal.
func (c *Client) GeneratePrompts(ctx context.Context, theme string) (string, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "", errors.New("theme is empty")
	}

	payload := generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: theme}}},
		},
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: promptGeneratorInstruction}}},
		GenerationConfig:  generationConfig{Temperature: 0.7},
	}

	resp, err := c.generateContent(ctx, c.textModel, payload)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("text model returned no text")
	}
	return resp.Text, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (EditResult, error) {
	if c.httpClient == nil {
		return EditResult{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return EditResult{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return EditResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return EditResult{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return EditResult{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return EditResult{}, &APIError{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Body:       strings.TrimSpace(string(rawBody)),
		}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return EditResult{}, fmt.Errorf("decode response: %w", err)
	}

	return extractParts(decoded)
}

type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %s: %s", e.Status, e.Body)
}

func extractParts(resp generateContentResponse) (EditResult, error) {
	if len(resp.Candidates) == 0 {
		return EditResult{}, nil
	}

	var textBuilder strings.Builder
	var images []Image

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" {
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return EditResult{}, fmt.Errorf("decode inline image: %w", err)
			}
			mimeType := p.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			images = append(images, Image{MimeType: mimeType, Data: data})
		}
	}

	return EditResult{Text: textBuilder.String(), Images: images}, nil
}

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature        float64      `json:"temperature,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

func isUnknownFieldError(err error, field string) bool {
	message := err.Error()
	return strings.Contains(message, "Unknown name") && strings.Contains(message, field)
}
