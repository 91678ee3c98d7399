package config

import "testing"

func TestGetDefaultsAreValid(t *testing.T) {
	cfg := GetDefaults()
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:   "bad vault driver",
			mutate: func(c *Config) { c.Vault.Driver = "sqlite" },
		},
		{
			name:   "bad ner type",
			mutate: func(c *Config) { c.NER.Type = "spacy" },
		},
		{
			name:   "bad classifier type",
			mutate: func(c *Config) { c.Classifier.Type = "bayes" },
		},
		{
			name:   "negative context window",
			mutate: func(c *Config) { c.Detection.ContextWindow = -1 },
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
