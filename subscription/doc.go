// Package subscription contains the catch-up Subscription engine, used to
// deliver an ordered stream of Domain Events coming from an upstream
// Event Store to one or more independent Consumers.
//
// An Orchestrator registers itself as the single Subscriber of the upstream
// Stream, and serializes every notification it receives (catching up, events,
// going live, subscription dropped) on a bounded queue, processed by a single
// event loop. Each Consumer is bound to the loop by a session, which tracks
// the Consumer progress and periodically asks it to checkpoint the last
// processed position, using different CheckpointFrequency policies while
// catching up and while live.
//
// Consumers can be combined using Composite, or wrapped with cross-cutting
// behavior using Intercept.
package subscription
