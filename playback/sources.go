package playback

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// mediaExtensions are tried in order when resolving a source ref.
var mediaExtensions = []string{".mp3", ".wav"}

// Library finds media files for source refs and keeps every decoded file
// in memory so a track can be reloaded without decoding it again.
type Library struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*beep.Buffer
}

// NewLibrary returns a library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{
		dir:   dir,
		cache: make(map[string]*beep.Buffer),
	}
}

// Dir returns the media directory.
func (l *Library) Dir() string {
	return l.dir
}

// Path returns the media file for sourceRef, <dir>/<sourceRef>.mp3 or .wav.
func (l *Library) Path(sourceRef string) (string, error) {
	if sourceRef == "" || sourceRef == "." || sourceRef == ".." || strings.ContainsAny(sourceRef, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrNoMedia, sourceRef)
	}
	for _, ext := range mediaExtensions {
		path := filepath.Join(l.dir, sourceRef+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoMedia, sourceRef)
}

// Has reports whether sourceRef has a media file.
func (l *Library) Has(sourceRef string) bool {
	_, err := l.Path(sourceRef)
	return err == nil
}

// Decode returns the decoded buffer for sourceRef.
func (l *Library) Decode(sourceRef string) (*beep.Buffer, error) {
	path, err := l.Path(sourceRef)
	if err != nil {
		return nil, err
	}
	return l.DecodeFile(path)
}

// DecodeFile returns the decoded buffer for a media file path.
func (l *Library) DecodeFile(path string) (*beep.Buffer, error) {
	l.mu.RLock()
	buffer, ok := l.cache[path]
	l.mu.RUnlock()
	if ok {
		return buffer, nil
	}

	buffer, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[path] = buffer
	l.mu.Unlock()

	slog.Debug("Decoded media file",
		slog.String("component", "playback"),
		slog.String("path", path),
		slog.Int("samples", buffer.Len()))
	return buffer, nil
}

// decodeFile loads and decodes a single media file into a buffer
func decodeFile(path string) (*beep.Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(file)
	case ".wav":
		streamer, format, err = wav.Decode(file)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrNoMedia, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, nil
}
