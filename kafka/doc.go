// Package kafka contains an event.Stream implementation reading Domain Events
// from a single Apache Kafka topic partition, and an event.Processor
// publishing Domain Events to a topic.
//
// The partition offset of each record is exposed as the Domain Event
// sequence number, plus one: sequence number 0 keeps meaning
// "from the beginning of the partition".
package kafka
