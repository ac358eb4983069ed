// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it will write to the backend. When adding
// new subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
var (
	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	ramdLog = backendLog.Logger("RAMD")
	chanLog = backendLog.Logger("CHAN")
	txmpLog = backendLog.Logger("TXMP")
	minrLog = backendLog.Logger("MINR")
	grdnLog = backendLog.Logger("GRDN")
	toknLog = backendLog.Logger("TOKN")
	ledgLog = backendLog.Logger("LEDG")
	sgnlLog = backendLog.Logger("SGNL")
	nodeLog = backendLog.Logger("NODE")
	cnfgLog = backendLog.Logger("CNFG")
)

// SubsystemTags is an enum of all subsystem tags.
var SubsystemTags = struct {
	RAMD,
	CHAN,
	TXMP,
	MINR,
	GRDN,
	TOKN,
	LEDG,
	SGNL,
	NODE,
	CNFG string
}{
	RAMD: "RAMD",
	CHAN: "CHAN",
	TXMP: "TXMP",
	MINR: "MINR",
	GRDN: "GRDN",
	TOKN: "TOKN",
	LEDG: "LEDG",
	SGNL: "SGNL",
	NODE: "NODE",
	CNFG: "CNFG",
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	SubsystemTags.RAMD: ramdLog,
	SubsystemTags.CHAN: chanLog,
	SubsystemTags.TXMP: txmpLog,
	SubsystemTags.MINR: minrLog,
	SubsystemTags.GRDN: grdnLog,
	SubsystemTags.TOKN: toknLog,
	SubsystemTags.LEDG: ledgLog,
	SubsystemTags.SGNL: sgnlLog,
	SubsystemTags.NODE: nodeLog,
	SubsystemTags.CNFG: cnfgLog,
}

// Get returns a logger of a specific subsystem.
func Get(tag string) (btclog.Logger, error) {
	logger, ok := subsystemLoggers[tag]
	if !ok {
		return nil, errors.Errorf("log subsystem %s not found", tag)
	}
	return logger, nil
}

// InitLogRotator initializes the logging rotater to write logs to logFile
// and create roll files in the same directory. It must be called before the
// package-global log rotator variable is used.
func InitLogRotator(logFile string) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}

	logRotator = r
}

// Close closes the log rotator if it was initialized.
func Close() {
	if logRotator != nil {
		logRotator.Close()
	}
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored; no logger is created for them.
func SetLogLevel(subsystemID string, logLevel string) {
	// Ignore invalid subsystems.
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level. Only the fixed set of subsystem loggers is affected; no logger is
// created.
func SetLogLevels(logLevel string) {
	// Configure all sub-systems with the new logging level.
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// ValidLogLevel returns whether or not logLevel is a valid debug log level.
func ValidLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
func ParseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !ValidLogLevel(debugLevel) {
			return errors.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}

		// Change the logging level for all subsystems.
		SetLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return errors.Errorf("the specified debug level contains an "+
				"invalid subsystem/level pair [%s]", logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			return errors.Errorf("the specified subsystem [%s] is invalid -- "+
				"supported subsystems %s", subsysID, SupportedSubsystems())
		}

		// Validate log level.
		if !ValidLogLevel(logLevel) {
			return errors.Errorf("the specified debug level [%s] is invalid", logLevel)
		}

		SetLogLevel(subsysID, logLevel)
	}

	return nil
}
