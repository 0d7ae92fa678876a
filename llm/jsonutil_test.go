package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string // if non-empty, check this key exists in parsed JSON
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"healthScore": 72}`,
			wantKey: "healthScore",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"healthScore\": 72}\n```",
			wantKey: "healthScore",
		},
		{
			name:    "markdown block with trailing text",
			input:   "```json\n{\"healthScore\": 72}\n```\n\nEcco l'analisi del prodotto.",
			wantKey: "healthScore",
		},
		{
			name:    "prose before and after the object",
			input:   "Certainly! Here is the analysis:\n{\"analysis\": \"Buon profilo nutrizionale\"}\nLet me know if you need more.",
			wantKey: "analysis",
		},
		{
			name: "JS comments in values",
			input: "```json\n{\n  \"pros\": [\n    {\"title\": \"Fibre\", \"detail\": \"Ricco di fibre\"},  // good point\n    {\"title\": \"Proteine\", \"detail\": \"Fonte proteica\"}\n  ]\n}\n```",
			wantKey: "pros",
		},
		{
			name: "JS comments and trailing commas",
			input: "```json\n{\n  \"recommendations\": [\n    \"Limitare il consumo\",  // first\n    \"Preferire alternative integrali\",  // second\n  ]\n}\n```",
			wantKey: "recommendations",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"source": "http://example.com/path"}`,
			wantKey: "source",
		},
		{
			name:    "braces inside string values",
			input:   `{"analysis": "contiene {molti} zuccheri", "healthScore": 40}`,
			wantKey: "analysis",
		},
		{
			name:    "escaped quote before closing brace",
			input:   `{"analysis": "il cosiddetto \"snack\" salutare"}`,
			wantKey: "analysis",
		},
		{
			name:    "nested objects",
			input:   `start {"explanations": {"nutriScore": "punteggio B"}, "healthScore": 65} end`,
			wantKey: "explanations",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "Questo prodotto sembra sano ma non posso fornire dati strutturati.",
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			input:   `{"healthScore": 72, "analysis": "troncat`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)

			if tt.wantErr {
				if result != "" {
					t.Errorf("expected empty result, got: %s", result)
				}
				return
			}

			if result == "" {
				t.Fatal("expected JSON result, got empty string")
			}

			// Verify it's valid JSON
			var parsed map[string]any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("result is not valid JSON: %v\nresult: %s", err, result)
			}

			if tt.wantKey != "" {
				if _, ok := parsed[tt.wantKey]; !ok {
					t.Errorf("expected key %q in parsed JSON, got keys: %v", tt.wantKey, keysOf(parsed))
				}
			}
		})
	}
}

func TestFirstBalancedObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "object only",
			input:    `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "stops at first balanced span",
			input:    `{"a": 1} {"b": 2}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "closing brace inside string ignored",
			input:    `{"a": "}"} tail`,
			expected: `{"a": "}"}`,
		},
		{
			name:     "no object",
			input:    "plain text",
			expected: "",
		},
		{
			name:     "never closes",
			input:    `{"a": {"b": 1}`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := firstBalancedObject(tt.input)
			if got != tt.expected {
				t.Errorf("firstBalancedObject(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no comment",
			input:    `  "key": "value",`,
			expected: `  "key": "value",`,
		},
		{
			name:     "trailing comment",
			input:    `  "key": "value",  // a comment`,
			expected: `  "key": "value",`,
		},
		{
			name:     "URL in string preserved",
			input:    `  "url": "http://example.com",`,
			expected: `  "url": "http://example.com",`,
		},
		{
			name:     "URL with trailing comment",
			input:    `  "url": "http://example.com",  // the url`,
			expected: `  "url": "http://example.com",`,
		},
		{
			name:     "whole line comment",
			input:    `  // This is a comment`,
			expected: ``,
		},
		{
			name:     "escaped quote in string",
			input:    `  "path": "a\"b//c",  // comment`,
			expected: `  "path": "a\"b//c",`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripLineComment(tt.input)
			if got != tt.expected {
				t.Errorf("stripLineComment(%q)\ngot:  %q\nwant: %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "trailing comma in array",
			input: `{"pros": ["uno", "due",]}`,
		},
		{
			name:  "trailing comma in object",
			input: `{"healthScore": 70, "sustainabilityScore": 55,}`,
		},
		{
			name:  "comments and trailing commas",
			input: "{\n  \"cons\": [\n    \"zuccheri\",  // first\n    \"sale\",  // second\n  ]\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cleanJSON(tt.input)

			var parsed any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("cleaned JSON is invalid: %v\nresult: %s", err, result)
			}
		})
	}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
