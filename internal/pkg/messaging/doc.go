// Package messaging is a small broker-agnostic publish/consume layer.
//
// Drivers exist for NATS, Kafka and NSQ, plus an in-process driver for
// local development and tests. Consumers share one dispatch loop: a handler
// returning nil acknowledges the message, an error requests redelivery
// where the broker supports it, and a panic is recovered and treated as an
// error.
package messaging
