// Package obs provides the structured logger shared by the compiler and
// the streaming request handler.
package obs

import (
	"go.uber.org/zap"
)

// Logger wraps a zap.Logger with the two call shapes the engine needs:
// a fatal, compile-time failure, and a recovered, request- or compile-time
// failure that is logged and then converted to a safe substitute.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger. In debug mode it uses zap's development config
// (human-readable, caller-annotated); otherwise it uses the production
// JSON encoder.
func New(debug bool) *Logger {
	var z *zap.Logger
	var err error
	if debug {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{z: z}
}

// Nop returns a Logger that discards everything, used where no logger was
// supplied (e.g. a library caller compiling without CompileOptions.Logger).
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

// Fatal logs a compile-time fatal error before it is returned to the
// caller of Compile.
func (l *Logger) Fatal(err error, fields ...zap.Field) {
	l.z.Error("compile failed", append(fields, zap.Error(err))...)
}

// Recovered logs an error that the engine has already converted into a
// safe substitute — this is the log line spec §7 requires for every
// member of the recovered taxonomy.
func (l *Logger) Recovered(err error, fields ...zap.Field) {
	l.z.Warn("recovered", append(fields, zap.Error(err))...)
}

// Info logs a lifecycle event (compile succeeded, request served).
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.z.Info(msg, fields...)
}

// Sync flushes the underlying zap core, typically called at process exit.
func (l *Logger) Sync() error { return l.z.Sync() }
