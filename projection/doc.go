// Package projection contains the building blocks to keep read models
// up to date with the Event Store, using catch-up Subscriptions.
//
// A Consumer adapts an event.Processor into a subscription Consumer
// that resumes from, and saves its progress to, a checkpoint.Checkpointer.
package projection
