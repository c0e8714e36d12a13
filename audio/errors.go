// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize        = errors.New("dst size must be multiple of channels")
	ErrUnsupportedChannels   = errors.New("unsupported channel count")
	ErrUnsupportedConversion = errors.New("unsupported sample rate conversion")
	ErrUnknownFormat         = errors.New("unknown sample format")
)
