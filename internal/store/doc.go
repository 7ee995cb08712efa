// Package store holds the latest course report and fans it out to
// dashboard clients.
//
// The main components are:
//
//   - [Store]: Interface defining snapshot storage and subscription
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: Storage representation of the course discovery state
//
// A snapshot is replaced wholesale on every write and copied on every read,
// so readers never observe a mix of two fetches. Subscribers receive
// updates via channels with non-blocking sends (slow subscribers will miss
// updates rather than block the system).
package store
