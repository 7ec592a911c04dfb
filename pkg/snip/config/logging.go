package config

import (
	"io"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging points the standard logger and gin's writers at stdout and,
// when LogFile is set, at a size-rotated file as well. The returned closer
// releases the file.
func (c *Config) SetupLogging() io.Closer {
	if c.LogFile == "" {
		return io.NopCloser(nil)
	}

	rotator := &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAgeDays,
		Compress:   c.LogCompress,
	}
	out := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(out)
	gin.DefaultWriter = out
	gin.DefaultErrorWriter = io.MultiWriter(os.Stderr, rotator)
	return rotator
}
