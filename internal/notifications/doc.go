// Package notifications pushes finished-task events to ntfy.
//
// Alignment on CPU can take longer than a user watches the browser tab, so a
// configured ntfy topic receives one message per completed or failed task.
// NewService returns a no-op implementation when no topic is configured.
package notifications
