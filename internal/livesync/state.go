package livesync

import (
	"time"

	"crawlwatch/pkg/protocol"
)

// ConnectionState is the push channel's lifecycle state. There is no terminal
// state: Closed always leads back to Connecting until the view is torn down.
type ConnectionState int

const (
	Connecting ConnectionState = iota
	Open
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Source identifies what caused a refresh
type Source string

const (
	SourceInitial  Source = "initial"
	SourcePeriodic Source = "periodic"
	SourcePush     Source = "push"
	SourceManual   Source = "manual"
)

// Trigger asks the consumer to re-request every tracked collection. It is
// produced once and consumed once.
type Trigger struct {
	Source Source
	At     time.Time
	// Update is set for push triggers
	Update *protocol.CrawlerUpdate
}
