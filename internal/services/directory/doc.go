// Package directory implements the read-only lookup service for seeded
// users, rooms, and friend relationships.
//
// The relay consults it to enrich identity claims; it never owns any
// real-time state.
package directory
