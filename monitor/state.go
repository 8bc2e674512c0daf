// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

// State is the lifecycle state of a Monitor.
//
//	Idle --Start--> Running --Stop--> StopRequested --loop exits--> Stopped
//	Stopped --Start--> Running
type State int32

const (
	Idle State = iota
	Running
	StopRequested
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StopRequested:
		return "stop-requested"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
