package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/srg/imurec/internal/export"
	"github.com/srg/imurec/internal/recording"
)

// Command-level errors
var (
	// ErrNoSource indicates neither simulated devices nor a capture file were requested.
	ErrNoSource = errors.New("no sample source")
)

// FormatUserError turns known errors into short, actionable messages.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, recording.ErrNoDevices):
		return "nothing was recorded: no devices were tracked"
	case errors.Is(err, export.ErrNoFreeName):
		return fmt.Sprintf("%v (clean up the recordings folder or raise max_name_probes)", err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("file not found: %v", err)
	case errors.Is(err, ErrNoSource):
		return "specify --devices N for simulated devices or --input <capture> to replay a capture"
	default:
		return err.Error()
	}
}
