// Package logging routes the standard logger to a rotating file so an
// interactive session is never interleaved with log output.
package logging

import (
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Configure sets up rotating file logging at the given path.
func Configure(path string) {
	log.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	})
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
