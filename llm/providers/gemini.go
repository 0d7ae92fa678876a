package providers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/scanly/nutriengine/llm"
)

// GeminiProvider implements the Google generateContent REST API.
// It is the vision-capable provider: image parts are sent as inline data.
type GeminiProvider struct{}

func init() {
	llm.RegisterProvider(&GeminiProvider{})
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// BuildURL constructs the generateContent endpoint for the given model.
func (g *GeminiProvider) BuildURL(baseURL, model string) string {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, ":generateContent") {
		return baseURL
	}

	return fmt.Sprintf("%s/models/%s:generateContent", baseURL, model)
}

// SetHeaders adds the Gemini API key header when configured.
func (g *GeminiProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}
}

// geminiRequest is the generateContent request format.
type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64-encoded
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// BuildRequestBody creates the generateContent request body. System messages
// are folded into the user content; Gemini has no separate system role on
// this endpoint.
func (g *GeminiProvider) BuildRequestBody(_ string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	contents := make([]geminiContent, 0, len(messages))
	for _, msg := range messages {
		parts := make([]geminiPart, 0, 1+len(msg.Images))
		if msg.Content != "" {
			parts = append(parts, geminiPart{Text: msg.Content})
		}
		for _, img := range msg.Images {
			if img.MIMEType == "" || len(img.Data) == 0 {
				return nil, fmt.Errorf("image part requires MIME type and data")
			}
			parts = append(parts, geminiPart{
				InlineData: &geminiInlineData{
					MIMEType: img.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				},
			})
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, geminiContent{Role: "user", Parts: parts})
	}

	if len(contents) == 0 {
		return nil, fmt.Errorf("no content to send")
	}

	req := geminiRequest{Contents: contents}
	if temperature != nil || maxTokens > 0 {
		cfg := &generationConfig{Temperature: temperature}
		if maxTokens > 0 {
			cfg.MaxOutputTokens = &maxTokens
		}
		req.GenerationConfig = cfg
	}

	return json.Marshal(req)
}

// geminiResponse is the generateContent response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// ParseResponse extracts text from a generateContent response, concatenating
// candidate parts.
func (g *GeminiProvider) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return &llm.Response{
		Content: sb.String(),
		Model:   model,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
		FinishReason: resp.Candidates[0].FinishReason,
	}, nil
}
