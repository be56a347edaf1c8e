// Package catchup contains the building blocks to run catch-up Subscriptions
// over ordered event streams, like Event Stores, in event-sourced applications.
//
// A catch-up Subscription replays the historical events of the upstream
// stream, from the earliest position requested by its consumers, and keeps
// delivering new events once caught up.
//
// You might want to start from the `subscription` package, exposing the
// generic Orchestrator, the Consumer contract and its decorators, and from
// `projection` to build checkpointed Read Models out of persisted Domain Events.
//
// Upstream streams are implemented in `inmemory`, `postgres` and `kafka`, while
// checkpoints can be stored with `postgres`, `firestore` or `mongodb`.
package catchup
