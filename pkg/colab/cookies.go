package colab

import (
	"encoding/json"
	"fmt"
	"os"
)

// loadCookies reads a cookie export file.
func loadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookies file: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("cookies file %s contains no cookies", path)
	}
	return cookies, nil
}

// saveCookies writes the current cookies back to the export file so a
// successful interactive login refreshes the stored credentials.
func saveCookies(path string, cookies []Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}
	return nil
}
