package utils

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	Logger *zap.SugaredLogger
)

// InitLogger configures the process-wide logger: JSON logs rotated on disk,
// errors split into their own file, everything mirrored to stdout.
func InitLogger() error {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.StacktraceKey = "stacktrace"
	encoderConfig.CallerKey = "caller"

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(jsonEncoder,
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join("logs", "error.log"),
				MaxSize:    100, // megabytes
				MaxBackups: 3,
				MaxAge:     7, // days
				Compress:   true,
			}),
			highPriority,
		),
		zapcore.NewCore(jsonEncoder,
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join("logs", "app.log"),
				MaxSize:    100,
				MaxBackups: 5,
				MaxAge:     7,
				Compress:   true,
				LocalTime:  true,
			}),
			lowPriority,
		),
		zapcore.NewCore(jsonEncoder,
			zapcore.AddSync(os.Stdout),
			zapcore.DebugLevel,
		),
	)

	logger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	Logger = logger.Sugar()
	return nil
}

// RequestLogger middleware for HTTP request logging
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()

		rw := &responseWriter{w, http.StatusOK}
		next.ServeHTTP(rw, r)

		Logger.Infow("Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
