// Package events publishes transcript events to Kafka for downstream
// consumers. Events are keyed by session so per-session ordering is
// preserved within a partition.
package events
