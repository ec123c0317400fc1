// Package objectstore wraps the S3 API calls used by the s3 source and sink.
//
// A Store is bound to one bucket. Keys are passed through verbatim; callers
// own prefix handling. Errors are classified against the sentinels in this
// package so callers can log a precise hint without importing the SDK.
package objectstore
