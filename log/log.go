package log

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is shared by every table and set that is not given its own logger.
// It discards everything until InitLogger is called.
var Logger = zap.NewNop()

// InitLogger installs a production logger writing JSON to stderr.
func InitLogger() error {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	config.EncoderConfig.EncodeLevel = levelEncoder(os.Stderr.Fd())
	logger, err := config.Build()
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

// InitDevelopmentLogger installs a console logger at debug level, which
// surfaces table growth and set collision events.
func InitDevelopmentLogger() error {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = levelEncoder(os.Stderr.Fd())
	logger, err := config.Build()
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

// levelEncoder only colors levels when fd is a terminal.
func levelEncoder(fd uintptr) zapcore.LevelEncoder {
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return zapcore.CapitalColorLevelEncoder
	}
	return zapcore.CapitalLevelEncoder
}
