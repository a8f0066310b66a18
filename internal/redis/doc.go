// Package redis implements the Redis-backed session continuity store.
//
// Suspended sessions are kept under room-scoped keys whose TTL equals the
// continuation timeout, so a reconnect past the window simply misses the
// entry. All operations run through metrics and circuit-breaker hooks.
package redis
