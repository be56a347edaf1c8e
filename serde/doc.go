// Package serde contains the Serializer and Deserializer abstractions used
// to map Domain Events from and to their storage or wire representation,
// together with implementations based on JSON and Protobuf.
//
// Use a Registry to serialize Messages of different types into the same
// storage, and deserialize them back using the name of the Message.
package serde
