// Package preflight provides readiness checks for the collaborators a batch
// run depends on.
//
// The CLI "sttbatch check" command runs RunAll and prints each Result; "run
// --preflight" runs the same checks and refuses to submit anything when one
// fails. Checks for features the configuration does not use are skipped.
package preflight
