// Package fido runs a fido-compatible classification command against a staged
// file and maps its first CSV output line to a candidate.
//
// fido prints one line per file:
//
//	OK,<ms>,<puid>,"<format name>","<signature name>",<size>,"<file>","<mime>",<match type>
//
// Anything not starting with OK means "no match". The command is started in its
// own process group so a timeout kills it along with any children it spawned.
package fido
