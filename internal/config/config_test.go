package config

import "testing"

func TestAIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  AIConfig
		wantErr bool
	}{
		{
			name:   "valid config",
			config: AIConfig{LLMProvider: "ollama", EmbedderProvider: "ollama"},
		},
		{
			name:    "missing llm provider",
			config:  AIConfig{EmbedderProvider: "ollama"},
			wantErr: true,
		},
		{
			name:    "missing embedder provider",
			config:  AIConfig{LLMProvider: "ollama"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("AIConfig.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
