package config

import (
	"encoding/json"
	"os"

	"github.com/use-agent/pricecrawl/models"
)

// Secrets is a flat credentials document, the JSON a secret manager
// export produces for one secret name.
type Secrets map[string]string

// LoadSecrets reads a JSON secrets document.
func LoadSecrets(path string) (Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeConfig, "read secrets file", err)
	}
	var s Secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeConfig, "parse secrets file", err)
	}
	return s, nil
}

// Get returns the first non-empty value among keys.
func (s Secrets) Get(keys ...string) string {
	for _, k := range keys {
		if v := s[k]; v != "" {
			return v
		}
	}
	return ""
}
