// Package inmemory contains thread-safe, in-memory implementations
// of the Event Store and Checkpointer interfaces, useful for tests
// and for applications that don't need durable storage.
package inmemory
