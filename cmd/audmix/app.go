// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/clips"
	"github.com/ik5/audmix/formats/aiff"
	"github.com/ik5/audmix/formats/mp3"
	"github.com/ik5/audmix/formats/vorbis"
	"github.com/ik5/audmix/formats/wav"
	"github.com/ik5/audmix/internal/config"
	"github.com/ik5/audmix/internal/scene"
	"github.com/ik5/audmix/mixer"
	"github.com/ik5/audmix/sink"
)

// Module wires the mixing pipeline. It needs *config.Config and
// *zap.Logger from the graph.
var Module = fx.Module("audmix",
	fx.Provide(
		newRegistry,
		newBank,
		newEngine,
		newScene,
		newSink,
	),
	fx.Invoke(registerRender),
)

func newRegistry() *audio.Registry {
	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	reg.Register("aiff", aiff.Decoder{})
	reg.Register("aif", aiff.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("ogg", vorbis.Decoder{})
	return reg
}

func newBank(cfg *config.Config, reg *audio.Registry, logger *zap.Logger) (*clips.Bank, error) {
	return clips.NewBank(reg, cfg.ClipCache, clips.WithLogger(logger.Named("clips")))
}

func newEngine(cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) (*mixer.Engine, error) {
	info, err := cfg.MixInfo()
	if err != nil {
		return nil, err
	}
	opts := append(cfg.EngineOptions(), mixer.WithLogger(logger.Named("mixer")))
	eng, err := mixer.NewEngine(info, opts...)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return eng.Close() },
	})
	return eng, nil
}

type sceneParams struct {
	fx.In
	Cfg  *config.Config
	Eng  *mixer.Engine
	Bank *clips.Bank
	Reg  *audio.Registry
	LC   fx.Lifecycle
}

func newScene(p sceneParams) (*scene.Scene, error) {
	s, err := scene.Build(p.Eng, p.Bank, p.Reg, p.Cfg)
	if err != nil {
		return nil, err
	}
	p.LC.Append(fx.Hook{
		OnStop: func(context.Context) error { return s.Close() },
	})
	return s, nil
}

func newSink(cfg *config.Config, eng *mixer.Engine, logger *zap.Logger, lc fx.Lifecycle) (sink.Sink, error) {
	out := eng.OutputInfo()
	s, err := sink.Create(sink.Settings{
		Path:          cfg.Output.Path,
		SampleRate:    int(out.SampleRate),
		Channels:      len(out.Channels),
		BitsPerSample: cfg.Output.Bits,
		Logger:        logger.Named("sink"),
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return s.Close() },
	})
	return s, nil
}

type renderParams struct {
	fx.In
	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Cfg        *config.Config
	Eng        *mixer.Engine
	Sink       sink.Sink
	Scene      *scene.Scene
	Logger     *zap.Logger
}

// registerRender renders output.seconds on start and shuts the app down
// when done. Stopping early cancels the render; hooks registered before
// this one (sink, scene, engine) stop after it.
func registerRender(p renderParams) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			info := p.Eng.MixInfo()
			quanta := p.Cfg.Quanta(info)
			p.Logger.Info("rendering",
				zap.String("path", p.Cfg.Output.Path),
				zap.Float64("seconds", p.Cfg.Output.Seconds),
				zap.Uint64("quanta", quanta),
				zap.Stringer("channels", p.Eng.AvailableChannelSet()))

			go func() {
				defer close(done)
				err := sink.Run(ctx, p.Eng, p.Sink, sink.RunOptions{
					Quanta:   quanta,
					Realtime: p.Cfg.Output.Realtime,
					Logger:   p.Logger,
				})

				code := 0
				switch {
				case err == nil:
					p.Logger.Info("render finished", zap.Uint64("pumps", p.Eng.Pumps()))
				case errors.Is(err, context.Canceled):
					p.Logger.Warn("render interrupted", zap.Uint64("pumps", p.Eng.Pumps()))
				default:
					p.Logger.Error("render failed", zap.Error(err))
					code = 1
				}
				if err := p.Shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					p.Logger.Error("shutdown", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
