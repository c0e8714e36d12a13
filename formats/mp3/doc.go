// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III streams into audio.Source using
// github.com/hajimehoshi/go-mp3.
//
// The decoder always reports two channels; mono files come out duplicated
// on both sides. Writing MP3 is not supported.
package mp3
