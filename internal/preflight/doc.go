// Package preflight provides readiness checks for the engines and paths
// medialog depends on.
//
// These checks run in two contexts:
//   - "medialog scan" calls RunAll before traversal and refuses to start when
//     a required check fails, so a run never begins with a broken engine.
//   - "medialog check" prints every result, including optional ones.
//
// Engine checks are gated by their config toggle; disabled engines are skipped.
package preflight
