// SPDX-License-Identifier: EPL-2.0

package mixer

import "errors"

var (
	ErrInvalidMixInfo        = errors.New("invalid mix info")
	ErrUnsupportedConversion = errors.New("unsupported voice conversion")
	ErrNilCallback           = errors.New("voice callback is nil")
	ErrPitchNotDynamic       = errors.New("voice was not allocated with dynamic pitch")
	ErrReleased              = errors.New("object already released")
	ErrMainSubmix            = errors.New("operation not allowed on the main submix")
	ErrForeignSubmix         = errors.New("submix belongs to another engine")
	ErrSelfSend              = errors.New("submix cannot send to itself")
	ErrSendCycle             = errors.New("send would create a cycle")
	ErrBufferTooSmall        = errors.New("buffer too small for one quantum")
	ErrLtRtNeedsStereo       = errors.New("Lt/Rt encoding requires a stereo output")

	// ErrCycle and ErrInconsistentOrder are returned by Linearize.
	ErrCycle             = errors.New("dependency cycle")
	ErrInconsistentOrder = errors.New("no consistent linearization")
)
