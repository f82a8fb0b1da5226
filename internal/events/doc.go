// Package events provides types and interfaces for an event-driven architecture.
//
// The repetition engine emits ReviewEvents when records are created, when
// reviews are applied and when optimistic updates lose a race. Handlers such
// as the metrics recorder subscribe through an EventEmitter, so the engine
// does not depend on them.
package events
