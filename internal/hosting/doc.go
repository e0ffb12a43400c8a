// Package hosting publishes local files and in-memory buffers under
// short-lived, unguessable URLs. Content is copied into a transient
// directory owned by the service, served by a small static HTTP
// listener, and removed again when the service is stopped.
package hosting
