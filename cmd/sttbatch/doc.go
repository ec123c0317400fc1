// Package main hosts the sttbatch CLI entrypoint and command graph.
//
// Running sttbatch with no subcommand transcribes every audio file the
// configured source lists: it submits each to the recognition service, polls
// until every job has resolved, writes transcripts to the configured sink and
// prints a run summary. The config subcommands scaffold and check the TOML
// configuration, and test-notify exercises the notification channels.
//
// Keep this package lean: the run itself lives in internal/workflow and the
// collaborators it drives live in their own internal packages. Commands here
// only resolve configuration, build those collaborators and render results.
package main
