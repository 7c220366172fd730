// Package logger provides leveled, optionally structured logging for vodforge.
// Output goes through the standard library logger so it composes with whatever
// the process has configured; set LOG_FORMAT=json for machine-readable output
// and LOG_LEVEL=debug to enable debug messages.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Field is a single structured logging key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// Info logs an informational message.
func Info(msg string, fields ...Field) {
	write("INFO", msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...Field) {
	write("WARN", msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...Field) {
	write("ERROR", msg, fields...)
}

// Debug logs a debug message when LOG_LEVEL=debug.
func Debug(msg string, fields ...Field) {
	if os.Getenv("LOG_LEVEL") == "debug" {
		write("DEBUG", msg, fields...)
	}
}

func write(level, msg string, fields ...Field) {
	if os.Getenv("LOG_FORMAT") == "json" {
		entry := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"level":     level,
			"message":   msg,
		}
		for _, f := range fields {
			entry[f.Key] = f.Value
		}
		data, _ := json.Marshal(entry)
		log.Println(string(data))
		return
	}

	if len(fields) == 0 {
		log.Printf("%s: %s", level, msg)
		return
	}

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", f.Key, f.Value)
	}
	log.Printf("%s: %s %s", level, msg, b.String())
}

// Helpers for common field types.

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}
