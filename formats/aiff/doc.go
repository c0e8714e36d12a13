// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes uncompressed AIFF files into audio.Source using
// github.com/go-audio/aiff.
package aiff
