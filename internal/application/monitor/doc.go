// Package monitor periodically logs a summary of the service's metric state.
package monitor
