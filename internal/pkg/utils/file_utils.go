package utils

import (
	"encoding/json"
	"os"

	"portfolio_tracker/internal/domain/entity"
)

// LoadTokensFromJSON reads the tracked-token list for one network.
func LoadTokensFromJSON(filePath string) ([]entity.TokenInfo, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var tokens []entity.TokenInfo
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// GetEnv returns the value of the environment variable or a default.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
