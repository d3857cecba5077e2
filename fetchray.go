// Package fetchray holds build-level metadata for the fetchray server.
package fetchray

// Version is the current release of fetchray.
const Version = "0.4.0"
