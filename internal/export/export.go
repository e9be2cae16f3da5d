// Package export writes finished gesture recordings to disk as JSON.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/imurec/internal/groutine"
	"github.com/srg/imurec/internal/recording"
)

const (
	// RecordingsFolder is the directory name recordings are kept under.
	RecordingsFolder = "GSD_Recordings"

	// DefaultMaxProbes bounds the suffix search for a free file name.
	DefaultMaxProbes = 1000

	preprocessedSuffix = "_PreProcessed"
	fileExt            = ".json"
)

var ErrNoFreeName = errors.New("no free file name")

// DefaultDir returns <home>/GSD_Recordings.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, RecordingsFolder), nil
}

// Exporter serializes recordings into one directory.
//
// File names are <label><startTime>.json; when taken, <label><startTime>_2.json,
// _3 and so on are probed linearly. Name selection and file creation happen
// under a single exporter-wide lock so concurrent exports never pick the same
// name. The probe is a plain existence check, not a cryptographic or
// cross-process guarantee beyond what O_EXCL provides. Serialization runs
// outside the lock.
type Exporter struct {
	dir       string
	maxProbes int
	logger    *logrus.Logger

	nameMu sync.Mutex

	lastMu   sync.RWMutex
	lastFile string

	wg sync.WaitGroup

	// writeData persists an encoded recording into a reserved file.
	writeData func(f *os.File, data []byte) error
}

// New creates an exporter writing into dir. maxProbes <= 0 selects DefaultMaxProbes.
func New(dir string, maxProbes int, logger *logrus.Logger) *Exporter {
	if maxProbes <= 0 {
		maxProbes = DefaultMaxProbes
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Exporter{
		dir:       dir,
		maxProbes: maxProbes,
		logger:    logger,
		writeData: writeAndClose,
	}
}

func writeAndClose(f *os.File, data []byte) error {
	_, err := f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (e *Exporter) Dir() string {
	return e.dir
}

// BaseName derives the collision-free-candidate name of a recording.
func BaseName(label string, startTime int64) string {
	return sanitize(label) + strconv.FormatInt(startTime, 10)
}

// WriteGesture exports a raw recording in the background. The returned
// channel yields exactly one value: the write error or nil.
func (e *Exporter) WriteGesture(g *recording.GestureData) <-chan error {
	return e.async(BaseName(g.Label, g.StartTime), g)
}

// WritePreprocessed exports a preprocessed recording in the background.
func (e *Exporter) WritePreprocessed(p *recording.PreprocessedData) <-chan error {
	return e.async(BaseName(p.Label, p.StartTime)+preprocessedSuffix, p)
}

// WriteGestureSync exports a raw recording and returns the written path.
func (e *Exporter) WriteGestureSync(g *recording.GestureData) (string, error) {
	return e.write(BaseName(g.Label, g.StartTime), g)
}

// WritePreprocessedSync exports a preprocessed recording and returns the written path.
func (e *Exporter) WritePreprocessedSync(p *recording.PreprocessedData) (string, error) {
	return e.write(BaseName(p.Label, p.StartTime)+preprocessedSuffix, p)
}

// LastFile returns the path of the most recent successful export, or "".
func (e *Exporter) LastFile() string {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	return e.lastFile
}

// Wait blocks until every background export has finished.
func (e *Exporter) Wait() {
	e.wg.Wait()
}

func (e *Exporter) async(base string, v any) <-chan error {
	result := make(chan error, 1)
	groutine.GoTracked(context.Background(), &e.wg, "export:"+base, func(ctx context.Context) {
		_, err := e.write(base, v)
		if err != nil {
			e.logger.WithError(err).WithField("name", base).Error("Export failed")
		}
		result <- err
		close(result)
	})
	return result
}

func (e *Exporter) write(base string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", base, err)
	}
	data = append(data, '\n')

	f, path, err := e.reserve(base)
	if err != nil {
		return "", err
	}

	if werr := e.writeData(f, data); werr != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, werr)
	}

	e.lastMu.Lock()
	e.lastFile = path
	e.lastMu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"path":  path,
		"bytes": len(data),
	}).Info("Recording exported")
	return path, nil
}

// reserve creates the first free file for base.
func (e *Exporter) reserve(base string) (*os.File, string, error) {
	e.nameMu.Lock()
	defer e.nameMu.Unlock()

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create recordings dir: %w", err)
	}

	// Suffixes extend the full base; the label is kept: <label><startTime>_<n>.
	for n := 1; n <= e.maxProbes; n++ {
		name := base
		if n > 1 {
			name = base + "_" + strconv.Itoa(n)
		}
		path := filepath.Join(e.dir, name+fileExt)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}

		return f, path, nil
	}

	return nil, "", fmt.Errorf("%w: %s after %d attempts", ErrNoFreeName, base, e.maxProbes)
}

// sanitize keeps labels from escaping the recordings directory.
func sanitize(label string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, label)
}
