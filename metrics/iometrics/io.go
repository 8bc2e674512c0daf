// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package iometrics measures block device I/O.

A Sampler reports the I/O throughput and the weighted time spent doing I/O
between two calls of Sample. Only whole devices (minor ID 0) are counted.

The description of '/proc/diskstats' can be found at

	https://www.kernel.org/doc/Documentation/iostats.txt.
*/
package iometrics // import "github.com/researchops/opsmon/metrics/iometrics"

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultDiskstats is the file the I/O values are read from.
const DefaultDiskstats = "/proc/diskstats"

const bytesPerBlock = 512

// Sampler calculates I/O rates from two consecutive reads of /proc/diskstats.
// A Sampler is not safe for concurrent use.
type Sampler struct {
	// procDiskstatsFile is the file name to read the IO metrics values from.
	procDiskstatsFile string

	// prevThroughput is the previously measured I/O throughput (blocks read+write)
	prevThroughput uint64

	// prevIODuration is the previously measured I/O duration in "weighted # of milliseconds"
	prevIODuration uint64

	// prevTime is the timestamp of the previous measurement
	prevTime time.Time
}

// NewSampler reads the initial values from procDiskstatsFile. An empty
// procDiskstatsFile selects DefaultDiskstats.
func NewSampler(procDiskstatsFile string) (*Sampler, error) {
	if procDiskstatsFile == "" {
		procDiskstatsFile = DefaultDiskstats
	}
	s := &Sampler{procDiskstatsFile: procDiskstatsFile}

	var err error
	// Initialize the previous values for further delta calculations.
	if s.prevThroughput, s.prevIODuration, err = s.parse(); err != nil {
		return nil, fmt.Errorf("failed to init I/O delta values: %w", err)
	}
	s.prevTime = time.Now()
	return s, nil
}

// parse returns the I/O throughput and duration values parsed from /proc/diskstats.
// I/O throughput is measured in blocks read and written.
// duration is measured in milliseconds spent for read and write.
func (s *Sampler) parse() (totalThroughput, totalDuration uint64, err error) {
	f, err := os.Open(s.procDiskstatsFile)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	ok := false

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 14 {
			continue
		}

		// we are only interested in devices (minor ID 0)
		if fields[1] != "0" {
			continue
		}

		ioRead, err := strconv.ParseUint(fields[5], 10, 64)
		if err != nil {
			return 0, 0, errors.New("failed to parse read blocks")
		}

		ioWrite, err := strconv.ParseUint(fields[9], 10, 64)
		if err != nil {
			return 0, 0, errors.New("failed to parse written blocks")
		}

		ioDuration, err := strconv.ParseUint(fields[13], 10, 64)
		if err != nil {
			return 0, 0, errors.New("failed to parse I/O duration")
		}

		totalThroughput += ioRead + ioWrite
		totalDuration += ioDuration
		ok = true
	}
	if err = scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to parse %s: %w", s.procDiskstatsFile, err)
	}
	if !ok {
		return 0, 0, errors.New("no data found")
	}
	return totalThroughput, totalDuration, nil
}

// Sample returns the I/O throughput in bytes/s and the I/O duration in
// milliseconds/s measured between the previous (successful) call and now.
func (s *Sampler) Sample(now time.Time) (avgThroughput, avgDuration uint64, err error) {
	var deltaThroughput, deltaDuration uint64

	ioThroughput, ioDuration, err := s.parse()
	if err != nil {
		return 0, 0, err
	}

	duration := now.Sub(s.prevTime)
	s.prevTime = now

	// handle wrap-around
	if ioThroughput < s.prevThroughput {
		log.Debugf("I/O throughput wrap-around detected %d -> %d",
			s.prevThroughput, ioThroughput)
		deltaThroughput = (math.MaxUint64 - s.prevThroughput) + ioThroughput + 1
	} else {
		deltaThroughput = ioThroughput - s.prevThroughput
	}

	// handle wrap-around
	if ioDuration < s.prevIODuration {
		log.Debugf("I/O duration wrap-around detected %d -> %d", s.prevIODuration, ioDuration)
		deltaDuration = (math.MaxUint64 - s.prevIODuration) + ioDuration + 1
	} else {
		deltaDuration = ioDuration - s.prevIODuration
	}

	s.prevThroughput = ioThroughput
	s.prevIODuration = ioDuration

	if duration <= 0 {
		return 0, 0, nil
	}

	// scaling regarding the interval duration
	scale := float64(time.Second) / float64(duration)

	// average throughput delta as bytes
	avgThroughput = uint64(scale * float64(deltaThroughput*bytesPerBlock))

	// average I/O duration delta as milliseconds
	avgDuration = uint64(scale * float64(deltaDuration))

	return avgThroughput, avgDuration, nil
}
