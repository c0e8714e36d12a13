// SPDX-License-Identifier: EPL-2.0

package mixer

import "go.uber.org/zap"

type options struct {
	logger     *zap.Logger
	ltrt       bool
	phaseShift bool
	buffers    int
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLtRt mixes internally in 5.1 and folds the result to a matrix-surround
// stereo output. phaseShift enables the 90 degree surround shift.
func WithLtRt(phaseShift bool) Option {
	return func(o *options) {
		o.ltrt = true
		o.phaseShift = phaseShift
	}
}

// WithOutputBuffers sets the size of the output ring, 2 or 3 (the default).
func WithOutputBuffers(n int) Option {
	return func(o *options) {
		o.buffers = min(max(n, 2), 3)
	}
}
