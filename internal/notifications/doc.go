// Package notifications delivers run events to operators and other systems.
//
// ntfy receives short human-readable pushes; NATS receives JSON envelopes on a
// configurable subject for machine consumers. Both are optional and the
// package degrades to a no-op when neither is configured. Workflow code depends
// only on the Service interface.
package notifications
