// SPDX-License-Identifier: EPL-2.0

package sink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/mixer"
)

// QuantumFunc is called after each quantum reaches the sink.
type QuantumFunc func(n uint64, buf audio.Samples)

// RunOptions tunes Run.
type RunOptions struct {
	// Quanta stops the run after this many quanta; 0 runs until ctx ends.
	Quanta uint64
	// Realtime paces pumps to the quantum duration, like a device would.
	Realtime bool
	// OnQuantum observes every written quantum.
	OnQuantum QuantumFunc
	Logger    *zap.Logger
}

// Run pumps eng on one goroutine and writes each quantum to s on the
// calling goroutine. The hand-off is unbuffered, so at most two output
// buffers are in flight and the engine's ring never overwrites one that is
// still being written.
//
// Run returns nil when Quanta quanta were written, the context error when
// ctx ends first, or the first sink error. It does not close s.
func Run(ctx context.Context, eng *mixer.Engine, s Sink, opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = eng.Logger()
	}

	myCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan audio.Samples)
	go produce(myCtx, eng, in, opts)

	var n uint64
	for {
		select {
		case <-myCtx.Done():
			logger.Debug("sink run stopped", zap.Uint64("quanta", n), zap.Error(ctx.Err()))
			return ctx.Err()
		case buf, ok := <-in:
			if !ok {
				if opts.Quanta == 0 || n < opts.Quanta {
					return ctx.Err()
				}
				logger.Debug("sink run finished", zap.Uint64("quanta", n))
				return nil
			}
			if err := s.Write(buf); err != nil {
				logger.Error("sink write failed", zap.Uint64("quantum", n), zap.Error(err))
				return errors.Wrapf(err, "write quantum %d", n)
			}
			if opts.OnQuantum != nil {
				opts.OnQuantum(n, buf)
			}
			n++
		}
	}
}

func produce(ctx context.Context, eng *mixer.Engine, out chan<- audio.Samples, opts RunOptions) {
	defer close(out)

	var tick <-chan time.Time
	if opts.Realtime {
		info := eng.OutputInfo()
		period := time.Duration(float64(info.PeriodFrames) / info.SampleRate * float64(time.Second))
		t := time.NewTicker(period)
		defer t.Stop()
		tick = t.C
	}

	for n := uint64(0); opts.Quanta == 0 || n < opts.Quanta; n++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		}
		buf := eng.PumpAndMixVoices()
		select {
		case <-ctx.Done():
			return
		case out <- buf:
		}
	}
}
