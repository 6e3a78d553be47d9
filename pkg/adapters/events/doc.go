// Package events provides event bus implementations for prediction fan-out.
//
// Implementations:
//   - memory: in-process handlers (default)
//   - redis: Redis Streams with consumer groups
package events
