package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/srg/imurec/internal/recording"
)

// Load reads a raw recording written by WriteGesture.
func Load(path string) (*recording.GestureData, error) {
	var g recording.GestureData
	if err := readJSON(path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// LoadPreprocessed reads a recording written by WritePreprocessed.
func LoadPreprocessed(path string) (*recording.PreprocessedData, error) {
	var p recording.PreprocessedData
	if err := readJSON(path, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read recording: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode recording %s: %w", path, err)
	}
	return nil
}
