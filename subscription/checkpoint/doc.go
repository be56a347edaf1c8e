// Package checkpoint exposes the Checkpointer interface, used by Consumers
// to save the position of the last processed event of a Subscription,
// so that it can be resumed after a restart without reprocessing events.
package checkpoint
