// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"fmt"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/internal/audiotest"
)

func ExampleConverter() {
	conv, err := audio.NewConverter(audio.FormatInt16, 1, 24000, 48000, 8)
	if err != nil {
		fmt.Println(err)
		return
	}

	out := audio.MakeSamples(audio.FormatInt16, 8)
	conv.Convert(out, 8, func(dst audio.Samples, frames int) int {
		for i := range frames {
			dst.Set(i, 1000)
		}
		return frames
	})

	fmt.Println(out.Int16)
	// Output: [1000 1000 1000 1000 1000 1000 1000 1000]
}

func ExampleRegistry() {
	reg := audio.NewRegistry()
	reg.Register("wav", nil)
	reg.Register("ogg", nil)

	_, ok := reg.ForPath("loop.OGG")
	fmt.Println(reg.Formats(), ok)
	// Output: [ogg wav] true
}

func ExampleNewDownmixer() {
	src := audiotest.NewChannelSource(48000, 4, 1)
	st, _ := audio.NewDownmixer(src, 2)

	buf := make([]float32, 2)
	n, _ := st.ReadSamples(buf)
	fmt.Printf("%d %.2f %.2f\n", n, buf[0], buf[1])
	// Output: 2 0.20 0.30
}
