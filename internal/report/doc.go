// Package report delivers pipeline results to their destinations.
//
// Store persists runs in a SQLite results database (runs, images, files,
// engine_results). Console prints a per-file engine breakdown for people,
// JSONLines emits one JSON object per file for other tools, and Multi fans a
// result out to several sinks. All of them satisfy pipeline.Sink.
package report
