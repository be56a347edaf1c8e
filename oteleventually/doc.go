// Package oteleventually provides OpenTelemetry instrumentation for
// catch-up Subscription consumers, in the form of a subscription.Interceptor
// recording traces and metrics around the Consumer lifecycle calls.
package oteleventually
