// Package staging copies content node byte streams out of an image into a
// per-run staging directory, verifies them against the stored MD5 digest, and
// guarantees the staged artifacts are removed.
//
// Layout on disk:
//
//	<staging_dir>/.medialog.lock
//	<staging_dir>/<run-id>/<uuid>/<sanitized leaf name>
//
// Every Stage call gets its own uuid directory so identically named leaves
// from different parts of the tree never collide. Payload.Release removes the
// directory and is safe to call more than once.
package staging
