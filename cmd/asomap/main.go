/*
DESCRIPTION
  asomap reports, for each slice of an H.264 stream, the slice group it
  belongs to and the macroblocks it may cover, and checks that the arithmetic
  decoder of CABAC slices can be initialised.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// asomap reports slice group mapping of H.264 Annex B or MPEG-TS streams.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

const pkg = "asomap: "

func main() {
	var (
		inPtr       = flag.String("in", "", "path of H.264 Annex B or MPEG-TS input, optionally .gz, .xz or .bz2 compressed")
		formatPtr   = flag.String("format", "", "input format: annexb, ts or empty to detect")
		pidPtr      = flag.Int("pid", 0, "PID of H.264 stream in MPEG-TS input, 0 to use the PMT")
		mapPtr      = flag.Bool("map", false, "print slice group maps as they are built")
		logPathPtr  = flag.String("log", "", "path of rolling log file")
		logSizePtr  = flag.Int("logsize", defaultLogMaxSize, "maximum log file size in MB")
		verbosePtr  = flag.Bool("v", false, "log at debug level")
		showVersion = flag.Bool("version", false, "show version")
	)
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := Config{
		InputPath:  *inPtr,
		Format:     *formatPtr,
		PID:        *pidPtr,
		DumpMap:    *mapPtr,
		LogPath:    *logPathPtr,
		LogMaxSize: *logSizePtr,
	}

	// Log to stderr, and to a rolling file if a path has been given.
	var w io.Writer = os.Stderr
	if cfg.LogPath != "" {
		fileLog := &lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		}
		defer fileLog.Close()
		w = io.MultiWriter(os.Stderr, fileLog)
	}
	verbosity := int8(logVerbosity)
	if *verbosePtr {
		verbosity = logging.Debug
	}
	log := logging.New(verbosity, w, logSuppress)
	cfg.Logger = log

	err := cfg.Validate()
	if err != nil {
		log.Fatal(pkg+"invalid config", "error", err.Error())
	}

	err = run(cfg, os.Stdout)
	if err != nil {
		log.Fatal(pkg+"analysis failed", "error", err.Error())
	}
}

// run analyses the input given by cfg, writing results to out.
func run(cfg Config, out io.Writer) error {
	in, err := openInput(cfg.InputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	r, err := annexBReader(in, cfg.Format, cfg.PID)
	if err != nil {
		return err
	}

	a := newAnalyser(out, cfg.DumpMap, cfg.Logger)
	err = a.run(r)
	a.summary()
	return err
}
