package log

import (
	"context"
	"fmt"
	"sync/atomic"
)

// SetLevel sets the minimum level for every logger sharing this one's root
// handler.
func (l *BaseLogger) SetLevel(level Level) {
	atomic.StoreInt32(l.level, int32(level))
}

// GetLevel returns the current minimum level.
func (l *BaseLogger) GetLevel() Level {
	return Level(atomic.LoadInt32(l.level))
}

func (l *BaseLogger) log(level Level, msg string, fields ...Field) {
	attrs := attrsToAny(attrsFromFieldSlice(fields))
	switch level {
	case DebugLevel:
		l.slogLogger.Debug(msg, attrs...)
	case InfoLevel:
		l.slogLogger.Info(msg, attrs...)
	case WarnLevel:
		l.slogLogger.Warn(msg, attrs...)
	case ErrorLevel, FatalLevel:
		l.slogLogger.Error(msg, attrs...)
	default:
		l.slogLogger.Info(msg, attrs...)
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields...) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields...) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields...) }

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.log(DebugLevel, fmt.Sprintf(msg, args...)) }
func (l *BaseLogger) Infof(msg string, args ...interface{})  { l.log(InfoLevel, fmt.Sprintf(msg, args...)) }
func (l *BaseLogger) Warnf(msg string, args ...interface{})  { l.log(WarnLevel, fmt.Sprintf(msg, args...)) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.log(ErrorLevel, fmt.Sprintf(msg, args...)) }
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) { l.log(FatalLevel, fmt.Sprintf(msg, args...)) }

// clone returns a new BaseLogger sharing this one's level pointer, outputs,
// and formatter, with fields merged and a derived slogLogger carrying attrs.
func (l *BaseLogger) clone(fields []Field) *BaseLogger {
	return &BaseLogger{
		level:      l.level,
		fields:     fieldsToMap(l.fields, fields),
		formatter:  l.formatter,
		outputs:    l.outputs,
		slogLogger: l.slogLogger.With(attrsToAny(attrsFromFieldSlice(fields))...),
	}
}

func (l *BaseLogger) With(fields ...Field) Logger {
	return l.clone(fields)
}

func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.clone([]Field{{Key: key, Value: value}})
}

func (l *BaseLogger) WithFields(fields Fields) Logger {
	fs := make([]Field, 0, len(fields))
	for k, v := range fields {
		fs = append(fs, Field{Key: k, Value: v})
	}
	return l.clone(fs)
}

func (l *BaseLogger) WithError(err error) Logger {
	return l.clone([]Field{Err(err)})
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.clone([]Field{Component(component)})
}

// WithContext pulls request/trace/span/component fields out of ctx (as set
// by ContextExtractor) and attaches them.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	extracted := ContextExtractor(ctx)
	if len(extracted) == 0 {
		return l
	}
	fs := make([]Field, 0, len(extracted))
	for k, v := range extracted {
		fs = append(fs, Field{Key: k, Value: v})
	}
	return l.clone(fs)
}
