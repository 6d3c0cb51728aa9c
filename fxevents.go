// Package fxevents marks user types for binary event serialization.
//
// Embedding Serializable in a struct makes it a candidate for the
// fxevents code generator, which emits PackSerializedBytes and
// UnpackSerializedBytes methods for it in a sibling fx_events_gen.go
// file:
//
//	type PlayerJoined struct {
//		fxevents.Serializable
//
//		Name  string
//		Score int32
//		Tags  []string `fx:"-"`
//	}
//
// Field behavior is controlled with the `fx` struct tag: "-" excludes a
// field, "force" includes an unexported field, and "skipread" /
// "skipwrite" restrict a field to one direction.
package fxevents

// Serializable is the marker type recognized by the code generator. It
// must be embedded in a plain, non-generic struct type.
type Serializable struct{}
