// Package pipeline sequences verse lookup and analysis and publishes the
// resulting state to observers.
//
// # State machine
//
//	idle -> looking_up -> analyzing -> success | error
//
// Any state accepts a new submission, which restarts at looking_up. Empty or
// whitespace-only queries are ignored.
//
// # Generations
//
// Every submission (and Reset) increments a generation counter. The previous
// run's context is cancelled, and any result it still produces is dropped: a
// stale generation never overwrites the current snapshot and is never
// delivered to subscribers. Run reports ErrSuperseded in that case.
//
// # Observers
//
// Subscribe registers a callback that receives every published Snapshot in
// publication order. Callbacks run outside the state lock but must not call
// Submit, Run, or Reset.
package pipeline
