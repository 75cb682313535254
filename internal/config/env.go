package config

import "strings"

const (
	EnvJWTSecret       = "MEDVAULT_JWT_SECRET"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// providerKeyEnv lists, per provider type, the variables consulted for a missing api_key.
var providerKeyEnv = map[string][]string{
	ProviderAnthropic:        {EnvAnthropicAPIKey},
	ProviderGemini:           {EnvGeminiAPIKey, EnvGoogleAPIKey},
	ProviderOpenAICompatible: {EnvOpenAIAPIKey},
}

// applyEnvOverrides fills secrets from the environment. When the file declares no
// providers, one is synthesized for each vendor whose key is exported.
func applyEnvOverrides(cfg *AppConfig, lookupEnv func(string) (string, bool)) {
	if v, ok := lookupEnv(EnvJWTSecret); ok && strings.TrimSpace(v) != "" {
		cfg.JWTSecret = strings.TrimSpace(v)
	}

	for i := range cfg.AI.Providers {
		p := &cfg.AI.Providers[i]
		if p.APIKey != "" {
			continue
		}
		p.APIKey = lookupFirst(lookupEnv, providerKeyEnv[p.Type]...)
	}

	if len(cfg.AI.Providers) > 0 {
		return
	}
	for i, t := range []string{ProviderGemini, ProviderAnthropic, ProviderOpenAICompatible} {
		key := lookupFirst(lookupEnv, providerKeyEnv[t]...)
		if key == "" {
			continue
		}
		cfg.AI.Providers = append(cfg.AI.Providers, normalizeAIProvider(AIProvider{
			ID:      t,
			Type:    t,
			APIKey:  key,
			Enabled: true,
		}, i))
	}
}

func lookupFirst(lookupEnv func(string) (string, bool), names ...string) string {
	for _, name := range names {
		if v, ok := lookupEnv(name); ok {
			if t := strings.TrimSpace(v); t != "" {
				return t
			}
		}
	}
	return ""
}
