/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/friendsincode/obsrec/internal/logbuffer"
)

// Setup configures zerolog for the process.
func Setup(environment, level string) zerolog.Logger {
	return SetupWithWriter(environment, level, os.Stdout)
}

// SetupWithBuffer configures zerolog for the process and also captures
// every line into buf for the status server.
func SetupWithBuffer(environment, level string, buf *logbuffer.Buffer) zerolog.Logger {
	return setup(environment, level, os.Stdout, logbuffer.NewWriter(buf))
}

// SetupWithWriter configures zerolog with a console writer on out.
func SetupWithWriter(environment, level string, out io.Writer) zerolog.Logger {
	return setup(environment, level, out, nil)
}

func setup(environment, level string, out io.Writer, capture io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl := zerolog.InfoLevel
	if environment == "development" {
		lvl = zerolog.DebugLevel
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			lvl = parsed
		}
	}

	var writer io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	if capture != nil {
		writer = zerolog.MultiLevelWriter(writer, capture)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
	log.Logger = logger
	return logger
}
