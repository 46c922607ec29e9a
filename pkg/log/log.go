// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package log builds the process-wide zerolog logger for the pipeline
// workers.
package log

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Out is the log output writer
var Out io.Writer = os.Stderr

// Mode dev prints in console format and prod in json output
var Mode = "dev"

// New returns a logger for the given worker name. The level string is parsed
// leniently; unknown levels fall back to info.
func New(name, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(Out).With().Str("worker", name).Int("pid", os.Getpid()).Timestamp().Logger().Level(lvl)
	if Mode == "" || Mode == "dev" {
		zl = zl.Output(zerolog.ConsoleWriter{Out: Out})
	}
	return zl
}
