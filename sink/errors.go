// SPDX-License-Identifier: EPL-2.0

package sink

import "github.com/pkg/errors"

var (
	// ErrSinkNotSupported is returned when no sink is registered for a path.
	ErrSinkNotSupported = errors.New("sink not supported")
	// ErrUnsupportedFormat is returned for channel counts or bit depths a
	// sink cannot encode.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrClosed is returned when writing to a closed sink.
	ErrClosed = errors.New("sink closed")
)
