// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package cpumetrics measures the host CPU usage.

A Sampler reports the average CPU usage (user + system) across all CPUs
between two calls of Usage. Every Sampler keeps its own previous sample, so
independent monitors can each own one.

The description of '/proc/stat' can be found at

	https://man7.org/linux/man-pages/man5/proc.5.html.
*/
package cpumetrics // import "github.com/researchops/opsmon/metrics/cpumetrics"

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	sysconf "github.com/tklauser/go-sysconf"
	"github.com/tklauser/numcpus"
)

// DefaultProcStat is the file the CPU usage values are read from.
const DefaultProcStat = "/proc/stat"

// Sampler calculates the CPU usage from two consecutive reads of /proc/stat.
// A Sampler is not safe for concurrent use.
type Sampler struct {
	// procStatFile is the file name to read the CPU usage values from.
	procStatFile string

	// nCPUs is the number of online CPUs
	nCPUs uint32

	// userHZ is the ticks per second, the unit for the values in /proc/stat
	userHZ uint32

	// prevUser is the previously measured user time in ticks (userHZ units)
	prevUser uint64

	// prevSystem is the previously measured system time in ticks (userHZ units)
	prevSystem uint64

	// prevTime is the timestamp of the previous measurement
	prevTime time.Time

	// buf is used by the scanner in parse()
	buf []byte
}

// CPUCount returns the number of online CPUs.
func CPUCount() int {
	n, err := numcpus.GetOnline()
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// NewSampler reads the initial values from procStatFile. An empty
// procStatFile selects DefaultProcStat.
func NewSampler(procStatFile string) (*Sampler, error) {
	if procStatFile == "" {
		procStatFile = DefaultProcStat
	}
	s := &Sampler{
		procStatFile: procStatFile,
		buf:          make([]byte, 8192),
	}

	// From 'man 5 proc':
	// The amount of time, measured in units of USER_HZ
	// (1/100ths of a second on most architectures), use
	// sysconf(_SC_CLK_TCK) to obtain the right value).
	tmpUserHZ, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || tmpUserHZ <= 0 {
		log.Warnf("Failed to get value of UserHZ / SC_CLK_TCK (using 100 as default)")
		tmpUserHZ = 100 // default on most Linux systems
	}
	s.userHZ = uint32(tmpUserHZ)
	s.nCPUs = uint32(CPUCount())

	log.Debugf("userHZ %d nCPUs %d", s.userHZ, s.nCPUs)

	// Initialize prevUser and prevSystem for further delta calculations.
	// If we don't do this we'll see a single 100% spike in the metrics.
	if s.prevUser, s.prevSystem, err = s.parse(); err != nil {
		return nil, fmt.Errorf("failed to init CPU delta values: %w", err)
	}
	s.prevTime = time.Now()
	return s, nil
}

// parse parses and returns the system and user CPU usage values.
func (s *Sampler) parse() (user, system uint64, err error) {
	f, err := os.Open(s.procStatFile)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// We only want to read the first line which fits very likely into buf.
	// The fallback is to support up to 8192 bytes per line.
	scanner.Buffer(s.buf, cap(s.buf))

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			return 0, 0, fmt.Errorf("failed to find at least 4 fields in '%s'", line)
		}

		if user, err = strconv.ParseUint(fields[1], 10, 64); err != nil {
			return 0, 0, errors.New("failed to parse CPU user value")
		}

		if system, err = strconv.ParseUint(fields[3], 10, 64); err != nil {
			return 0, 0, errors.New("failed to parse CPU system value")
		}

		return user, system, nil
	}

	if err = scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to parse %s: %w", s.procStatFile, err)
	}

	return 0, 0, fmt.Errorf("failed to find 'cpu' keyword in %s", s.procStatFile)
}

// Usage returns the average CPU usage in percent between the previous
// (successful) call and now.
func (s *Sampler) Usage() (float64, error) {
	user, system, err := s.parse()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	duration := now.Sub(s.prevTime)
	s.prevTime = now

	var load uint64

	// handle wrap-around of user value
	if user < s.prevUser {
		log.Debugf("User wrap-around detected %d -> %d", s.prevUser, user)
		load = (math.MaxUint64 - s.prevUser) + user + 1
	} else {
		load = user - s.prevUser
	}

	// handle wrap-around of system value
	if system < s.prevSystem {
		log.Debugf("System wrap-around detected %d -> %d", s.prevSystem, system)
		load += (math.MaxUint64 - s.prevSystem) + system + 1
	} else {
		load += system - s.prevSystem
	}

	s.prevUser = user
	s.prevSystem = system

	// Calculate the maximum possible number of ticks for the elapsed time.
	maxTicks := float64(s.nCPUs) * float64(s.userHZ) * duration.Seconds()
	if maxTicks <= 0 {
		return 0, nil
	}
	return min(float64(load)*100/maxTicks, 100), nil
}
