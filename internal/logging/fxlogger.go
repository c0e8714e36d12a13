// SPDX-License-Identifier: EPL-2.0

package logging

import (
	"strings"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLogger reports fx lifecycle events through zap. Routine events go to
// Debug so a normal run only shows failures.
type FxLogger struct {
	logger *zap.Logger
}

// NewFxLogger adapts logger to fxevent.Logger.
func NewFxLogger(logger *zap.Logger) fxevent.Logger {
	return &FxLogger{logger: logger.Named("fx")}
}

func (l *FxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		l.hook("OnStart", e.CallerName, e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuted:
		l.hook("OnStop", e.CallerName, e.FunctionName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		l.result("supplied", e.Err, zap.String("type", e.TypeName))
	case *fxevent.Provided:
		l.result("provided", e.Err, zap.String("types", strings.Join(e.OutputTypeNames, ", ")))
	case *fxevent.Invoked:
		l.result("invoked", e.Err, zap.String("function", e.FunctionName))
	case *fxevent.Stopping:
		l.logger.Info("stopping", zap.String("signal", e.Signal.String()))
	case *fxevent.RollingBack:
		l.logger.Error("start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		l.result("rolled back", e.Err)
	case *fxevent.Started:
		l.result("started", e.Err)
	case *fxevent.Stopped:
		l.result("stopped", e.Err)
	case *fxevent.LoggerInitialized:
		l.result("logger initialized", e.Err, zap.String("constructor", e.ConstructorName))
	}
}

func (l *FxLogger) hook(kind, caller, function, runtime string, err error) {
	fields := []zap.Field{
		zap.String("caller", caller),
		zap.String("function", function),
	}
	if err != nil {
		l.logger.Error(kind+" hook failed", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Debug(kind+" hook executed", append(fields, zap.String("runtime", runtime))...)
}

func (l *FxLogger) result(msg string, err error, fields ...zap.Field) {
	if err != nil {
		l.logger.Error(msg, append(fields, zap.Error(err))...)
		return
	}
	l.logger.Debug(msg, fields...)
}
