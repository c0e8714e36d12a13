// SPDX-License-Identifier: EPL-2.0

package clips

import "github.com/pkg/errors"

var (
	// ErrNoDecoder is returned when no decoder is registered for a clip's
	// file extension.
	ErrNoDecoder = errors.New("no decoder for clip")
	// ErrEmptyClip is returned when a source decodes to zero frames.
	ErrEmptyClip = errors.New("clip has no audio")
)
