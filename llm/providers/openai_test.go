package providers

import (
	"testing"

	"github.com/scanly/nutriengine/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_BuildURL(t *testing.T) {
	p := &OpenAIProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses default",
			baseURL: "",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "custom base URL",
			baseURL: "http://myserver:8080/v1",
			want:    "http://myserver:8080/v1/chat/completions",
		},
		{
			name:    "trailing slash handled",
			baseURL: "http://localhost:11434/v1/",
			want:    "http://localhost:11434/v1/chat/completions",
		},
		{
			name:    "already has endpoint",
			baseURL: "http://localhost:11434/v1/chat/completions",
			want:    "http://localhost:11434/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.BuildURL(tt.baseURL, "test-model")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAIProvider_BuildRequestBody(t *testing.T) {
	p := &OpenAIProvider{}

	messages := []llm.Message{
		{Role: "system", Content: "Sei un nutrizionista."},
		{Role: "user", Content: "Analizza questo prodotto"},
	}

	temp := 0.2
	body, err := p.BuildRequestBody("gpt-4o-mini", messages, &temp, 2048)
	require.NoError(t, err)

	// Verify model is set
	assert.Contains(t, string(body), `"model":"gpt-4o-mini"`)

	// Verify messages include system (OpenAI format keeps system as message)
	assert.Contains(t, string(body), `"role":"system"`)
	assert.Contains(t, string(body), `"role":"user"`)

	// Verify optional parameters
	assert.Contains(t, string(body), `"temperature":0.2`)
	assert.Contains(t, string(body), `"max_tokens":2048`)
}

func TestOpenAIProvider_BuildRequestBody_NoOptionalParams(t *testing.T) {
	p := &OpenAIProvider{}

	messages := []llm.Message{
		{Role: "user", Content: "Hello"},
	}

	body, err := p.BuildRequestBody("test-model", messages, nil, 0)
	require.NoError(t, err)

	assert.NotContains(t, string(body), `"temperature"`)
	assert.NotContains(t, string(body), `"max_tokens"`)
}

func TestOpenAIProvider_BuildRequestBody_RejectsImages(t *testing.T) {
	p := &OpenAIProvider{}

	messages := []llm.Message{
		{
			Role:    "user",
			Content: "Cosa vedi?",
			Images:  []llm.ImagePart{{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
		},
	}

	_, err := p.BuildRequestBody("test-model", messages, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image")
}

func TestOpenAIProvider_ParseResponse(t *testing.T) {
	p := &OpenAIProvider{}

	body := []byte(`{
		"id": "chatcmpl-123",
		"model": "gpt-4o-mini",
		"choices": [
			{
				"message": {"role": "assistant", "content": "{\"healthScore\": 60}"},
				"finish_reason": "stop"
			}
		],
		"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
	}`)

	resp, err := p.ParseResponse(body, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, `{"healthScore": 60}`, resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, 19, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestOpenAIProvider_ParseResponse_NoChoices(t *testing.T) {
	p := &OpenAIProvider{}

	_, err := p.ParseResponse([]byte(`{"model": "x", "choices": []}`), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
