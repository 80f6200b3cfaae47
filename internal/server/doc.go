// Package server implements the core HTTP and WebSocket functionality for
// ratechat: session lifecycle, broadcast fan-out, command dispatch, and the
// configuration that ties them together.
//
// The implementation is organized into specialized files for configuration,
// hub management, sessions, command dispatch, routing, and HTTP handlers to
// keep the codebase maintainable and testable as the project grows.
package server
