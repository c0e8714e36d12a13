// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis streams into audio.Source using
// github.com/jfreymuth/oggvorbis. Any channel count the stream declares is
// passed through; use audio.Downmixer to fold surround streams.
package vorbis
