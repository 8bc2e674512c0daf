// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	//nolint:gosec
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/researchops/opsmon/internal/controller"
	"github.com/researchops/opsmon/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package returns this on flag parse errors
	exitParseError exitCode = controller.ExitParseError
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return parseError("Failure to parse arguments: %v", err)
	}

	if cfg.Version {
		fmt.Printf("%s\n", vc.Version())
		return exitSuccess
	}

	if cfg.VerboseMode {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		cfg.Dump()
	}

	if err = cfg.Validate(); err != nil {
		return exitWith(err)
	}

	// Context to drive main goroutine.
	mainCtx, mainCancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer mainCancel()

	if cfg.PprofAddr != "" {
		go func() {
			//nolint:gosec
			if err = http.ListenAndServe(cfg.PprofAddr, nil); err != nil {
				log.Errorf("Serving pprof on %s failed: %s", cfg.PprofAddr, err)
			}
		}()
	}

	log.Infof("Starting opsmon %s (revision %s, build timestamp %s)",
		vc.Version(), vc.Revision(), vc.BuildTimestamp())

	ctlr := controller.New(cfg)
	startTime := time.Now()
	if err = ctlr.Start(mainCtx); err != nil {
		if shutdownErr := ctlr.Shutdown(); shutdownErr != nil {
			log.Warn(shutdownErr)
		}
		return exitWith(err)
	}
	log.Infof("Monitors started in %s", time.Since(startTime).Round(time.Millisecond))

	// Block waiting for a signal to indicate the program should terminate
	<-mainCtx.Done()

	if err = ctlr.Shutdown(); err != nil {
		log.Warnf("Shutdown incomplete: %v", err)
	}

	log.Info("Exiting ...")
	return exitSuccess
}

func exitWith(err error) exitCode {
	var exitErr controller.ErrorWithExitCode
	if errors.As(err, &exitErr) {
		log.Error(err)
		return exitCode(exitErr.Code())
	}
	return failure("%v", err)
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
