// Package websocket streams completed predictions to WebSocket clients.
package websocket
