// Package eventlog implements the append-only, sequence-numbered record
// of everything a crawl job produces.
package eventlog

import (
	"time"

	"github.com/brisketlabs/crawld/internal/crawl"
)

// Type tags the kind of event carried.
type Type string

// Event types.
const (
	TypeLog   Type = "log"
	TypeItem  Type = "item"
	TypeDone  Type = "done"
	TypeError Type = "error"
)

// Log levels carried by log events.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event is one immutable entry in a job's log. Seq is assigned at
// append time, per job, gapless from 1; events are never mutated or
// deleted afterwards.
type Event struct {
	Seq  int64     `json:"seq"`
	Type Type      `json:"type"`
	At   time.Time `json:"at"`

	// log events
	Level string `json:"level,omitempty"`
	Msg   string `json:"msg,omitempty"`

	// item events
	Item *crawl.Item `json:"item,omitempty"`

	// done events
	Items int `json:"items,omitempty"`

	// error events
	Message string `json:"message,omitempty"`
}
