// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
)

// Sink consumes rendered quanta.
type Sink interface {
	// Write consumes one interleaved block with Settings.Channels channels.
	Write(buf audio.Samples) error
	Close() error
}

// Settings configures a sink.
type Settings struct {
	Path          string
	SampleRate    int
	Channels      int
	BitsPerSample int
	Logger        *zap.Logger
}

func (s Settings) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s Settings) validate() error {
	if s.SampleRate <= 0 {
		return errors.Wrapf(ErrUnsupportedFormat, "sample rate %d", s.SampleRate)
	}
	if s.Channels <= 0 || s.Channels > 8 {
		return errors.Wrapf(ErrUnsupportedFormat, "%d channels", s.Channels)
	}
	return nil
}

type createFileFunc func(f *os.File, settings Settings) (Sink, error)

var (
	registryMtx sync.RWMutex
	fileSinks   = map[string]createFileFunc{}
)

// register binds a file extension (with leading dot) to a constructor.
func register(ext string, create createFileFunc) {
	registryMtx.Lock()
	defer registryMtx.Unlock()
	fileSinks[strings.ToLower(ext)] = create
}

// Extensions lists the file extensions Create understands.
func Extensions() []string {
	registryMtx.RLock()
	defer registryMtx.RUnlock()
	out := make([]string, 0, len(fileSinks))
	for ext := range fileSinks {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Create opens settings.Path and returns a sink chosen by its extension.
func Create(settings Settings) (Sink, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(settings.Path))
	registryMtx.RLock()
	create, ok := fileSinks[ext]
	registryMtx.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrSinkNotSupported, settings.Path)
	}

	f, err := os.OpenFile(settings.Path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open sink file")
	}
	s, err := create(f, settings)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	settings.logger().Debug("sink created",
		zap.String("path", settings.Path),
		zap.Int("rate", settings.SampleRate),
		zap.Int("channels", settings.Channels),
		zap.Int("bits", settings.BitsPerSample))
	return s, nil
}
