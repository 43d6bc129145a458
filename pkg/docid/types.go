package docid

import (
	"github.com/dan-solli/docid/pkg/decision"
	"github.com/dan-solli/docid/pkg/fingerprint"
	"github.com/dan-solli/docid/pkg/lifecycle"
	"github.com/dan-solli/docid/pkg/store"
)

// Type re-exports for caller convenience

// Decision is re-exported from the decision package
type Decision = decision.Decision

// Action is re-exported from the decision package
type Action = decision.Action

// Action constants re-exported from the decision package
const (
	ActionCreate    = decision.ActionCreate
	ActionUpdate    = decision.ActionUpdate
	ActionDuplicate = decision.ActionDuplicate
	ActionSimilar   = decision.ActionSimilar
)

// Thresholds is re-exported from the decision package
type Thresholds = decision.Thresholds

// Fingerprint is re-exported from the fingerprint package
type Fingerprint = fingerprint.Fingerprint

// FingerprintRecord is re-exported from the store package
type FingerprintRecord = store.FingerprintRecord

// DocumentState is re-exported from the store package
type DocumentState = store.DocumentState

// DocumentState constants re-exported from the store package
const (
	StateActive     = store.StateActive
	StateSuperseded = store.StateSuperseded
	StateDuplicate  = store.StateDuplicate
	StateDeleted    = store.StateDeleted
)

// ConflictError is re-exported from the store package
type ConflictError = store.ConflictError

// Event is re-exported from the lifecycle package
type Event = lifecycle.Event

// EventType is re-exported from the lifecycle package
type EventType = lifecycle.EventType

// EventType constants re-exported from the lifecycle package
const (
	EventCreated    = lifecycle.EventCreated
	EventSuperseded = lifecycle.EventSuperseded
	EventDuplicate  = lifecycle.EventDuplicate
	EventDeleted    = lifecycle.EventDeleted
)

// EventSink is re-exported from the lifecycle package
type EventSink = lifecycle.EventSink

// BulkResult is re-exported from the lifecycle package
type BulkResult = lifecycle.BulkResult
