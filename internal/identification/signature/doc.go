// Package signature implements a small PRONOM-style byte signature matcher.
//
// The database is TOML:
//
//	version = "builtin-1"
//
//	[[format]]
//	puid = "fmt/43"
//	name = "JPEG File Interchange Format"
//	version = "1.01"
//	mime = "image/jpeg"
//	priority_over = ["fmt/41"]
//
//	  [[format.signature]]
//	  position = "bof"          # bof, eof or var
//	  offset = 0
//	  max_offset = 0            # bof/eof: search window end, 0 for exact
//	  pattern = "FFD8FFE0 ???? 4A464946 00 0101"
//
// A format matches when any of its signatures match. Patterns are hex with
// whitespace ignored and "??" matching any byte. Hits are returned in database
// order after removing every hit that another hit has priority over.
package signature
