// Package pipeline walks image content trees and runs every file through
// staging, identification and reporting.
//
// Traversal is depth-first pre-order over an explicit stack, so deep trees
// never grow the call stack. Each file is handled independently: a staging or
// engine failure is recorded in that file's Result and the walk moves on to
// the file's children and siblings. Only context cancellation ends a walk
// early.
package pipeline
