/*
DESCRIPTION
  config.go provides the configuration of asomap, its defaults and their
  validation.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"github.com/ausocean/utils/logging"
)

// Input formats.
const (
	FormatDetect = ""
	FormatAnnexB = "annexb"
	FormatTS     = "ts"
)

// Config keys, used when logging invalid fields.
const (
	KeyInputPath  = "InputPath"
	KeyFormat     = "Format"
	KeyPID        = "PID"
	KeyLogMaxSize = "LogMaxSize"
)

// Default config values.
const (
	defaultInputPath  = "media.h264"
	defaultFormat     = FormatDetect
	defaultPID        = 0
	defaultLogMaxSize = 50 // MB
	maxPID            = 0x1fff
)

// Config holds the settings of an asomap run.
type Config struct {
	// Logger holds an implementation of the logging.Logger interface.
	Logger logging.Logger

	// InputPath is the path of the stream to analyse. Streams with a .gz, .xz
	// or .bz2 extension are decompressed.
	InputPath string

	// Format is one of FormatAnnexB or FormatTS, or FormatDetect to detect
	// MPEG-TS by its sync bytes.
	Format string

	// PID is the packet identifier of the H.264 elementary stream of MPEG-TS
	// input. If 0 the PID is found from the PMT.
	PID int

	// DumpMap causes slice group maps to be printed whenever a new map is built.
	DumpMap bool

	// LogPath, if not empty, is the path of a rolling log file written to in
	// addition to stderr, rolling at LogMaxSize megabytes.
	LogPath    string
	LogMaxSize int
}

// Validate checks the fields of the Config, defaulting those that are bad or
// unset.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		c.LogInvalidField(KeyInputPath, defaultInputPath)
		c.InputPath = defaultInputPath
	}

	switch c.Format {
	case FormatDetect, FormatAnnexB, FormatTS:
	default:
		c.LogInvalidField(KeyFormat, defaultFormat)
		c.Format = defaultFormat
	}

	if c.PID < 0 || c.PID > maxPID {
		c.LogInvalidField(KeyPID, defaultPID)
		c.PID = defaultPID
	}

	if c.LogMaxSize <= 0 {
		c.LogInvalidField(KeyLogMaxSize, defaultLogMaxSize)
		c.LogMaxSize = defaultLogMaxSize
	}
	return nil
}

// LogInvalidField logs that the field name was bad or unset and has been
// defaulted to def.
func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
