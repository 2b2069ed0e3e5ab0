package signature

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed default_signatures.toml
var defaultDatabase []byte

// Position anchors a byte sequence.
type Position string

const (
	PositionBOF Position = "bof"
	PositionEOF Position = "eof"
	PositionVar Position = "var"
)

type fileDatabase struct {
	Version string       `toml:"version"`
	Formats []fileFormat `toml:"format"`
}

type fileFormat struct {
	PUID         string          `toml:"puid"`
	Name         string          `toml:"name"`
	Version      string          `toml:"version"`
	MIME         string          `toml:"mime"`
	PriorityOver []string        `toml:"priority_over"`
	Signatures   []fileSignature `toml:"signature"`
}

type fileSignature struct {
	Position  string `toml:"position"`
	Offset    int64  `toml:"offset"`
	MaxOffset int64  `toml:"max_offset"`
	Pattern   string `toml:"pattern"`
}

// Database is a compiled signature database. Immutable after Load.
type Database struct {
	Version string
	Formats []Format

	maxBOF int64
	maxEOF int64
}

// Format is one identifiable format.
type Format struct {
	PUID         string
	Name         string
	Version      string
	MIME         string
	PriorityOver map[string]struct{}
	Signatures   []Signature
}

// Signature is one compiled byte sequence.
type Signature struct {
	Position  Position
	Offset    int64
	MaxOffset int64
	Pattern   Pattern
}

// Pattern is a byte sequence where masked positions match any byte.
type Pattern struct {
	Bytes []byte
	Any   []bool
}

// LoadFile reads and compiles a database file.
func LoadFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signature database: %w", err)
	}
	return Parse(data)
}

// Default returns the compiled embedded database.
func Default() (*Database, error) {
	return Parse(defaultDatabase)
}

// Parse compiles a TOML signature database.
func Parse(data []byte) (*Database, error) {
	var raw fileDatabase
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse signature database: %w", err)
	}
	if strings.TrimSpace(raw.Version) == "" {
		return nil, errors.New("signature database has no version")
	}
	if len(raw.Formats) == 0 {
		return nil, errors.New("signature database defines no formats")
	}

	db := &Database{Version: strings.TrimSpace(raw.Version)}
	seen := make(map[string]struct{}, len(raw.Formats))
	for i, rf := range raw.Formats {
		puid := strings.TrimSpace(rf.PUID)
		if puid == "" {
			return nil, fmt.Errorf("format %d: puid is required", i)
		}
		if _, dup := seen[puid]; dup {
			return nil, fmt.Errorf("format %s: duplicate puid", puid)
		}
		seen[puid] = struct{}{}
		if len(rf.Signatures) == 0 {
			return nil, fmt.Errorf("format %s: no signatures", puid)
		}

		format := Format{
			PUID:         puid,
			Name:         rf.Name,
			Version:      rf.Version,
			MIME:         strings.TrimSpace(rf.MIME),
			PriorityOver: make(map[string]struct{}, len(rf.PriorityOver)),
		}
		for _, other := range rf.PriorityOver {
			format.PriorityOver[strings.TrimSpace(other)] = struct{}{}
		}
		for j, rs := range rf.Signatures {
			sig, err := compileSignature(rs)
			if err != nil {
				return nil, fmt.Errorf("format %s signature %d: %w", puid, j, err)
			}
			db.track(sig)
			format.Signatures = append(format.Signatures, sig)
		}
		db.Formats = append(db.Formats, format)
	}
	return db, nil
}

// track records how far into the file head and tail signatures reach.
func (db *Database) track(sig Signature) {
	end := max(sig.Offset, sig.MaxOffset) + int64(len(sig.Pattern.Bytes))
	switch sig.Position {
	case PositionBOF:
		db.maxBOF = max(db.maxBOF, end)
	case PositionEOF:
		db.maxEOF = max(db.maxEOF, end)
	}
}

func compileSignature(rs fileSignature) (Signature, error) {
	pos := Position(strings.ToLower(strings.TrimSpace(rs.Position)))
	switch pos {
	case PositionBOF, PositionEOF, PositionVar:
	case "":
		pos = PositionBOF
	default:
		return Signature{}, fmt.Errorf("unknown position %q", rs.Position)
	}
	if rs.Offset < 0 || rs.MaxOffset < 0 {
		return Signature{}, errors.New("offsets must not be negative")
	}
	if rs.MaxOffset != 0 && rs.MaxOffset < rs.Offset {
		return Signature{}, errors.New("max_offset is before offset")
	}
	pattern, err := ParsePattern(rs.Pattern)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Position: pos, Offset: rs.Offset, MaxOffset: rs.MaxOffset, Pattern: pattern}, nil
}

// ParsePattern compiles hex text such as "FFD8 ?? E0". Whitespace is ignored.
func ParsePattern(text string) (Pattern, error) {
	compact := strings.Join(strings.Fields(text), "")
	if compact == "" {
		return Pattern{}, errors.New("empty pattern")
	}
	if len(compact)%2 != 0 {
		return Pattern{}, fmt.Errorf("pattern %q has an odd number of hex digits", text)
	}
	p := Pattern{
		Bytes: make([]byte, len(compact)/2),
		Any:   make([]bool, len(compact)/2),
	}
	for i := 0; i < len(compact); i += 2 {
		pair := compact[i : i+2]
		if pair == "??" {
			p.Any[i/2] = true
			continue
		}
		b, err := hex.DecodeString(pair)
		if err != nil {
			return Pattern{}, fmt.Errorf("pattern %q: invalid byte %q", text, pair)
		}
		p.Bytes[i/2] = b[0]
	}
	return p, nil
}

// matchAt reports whether p matches data starting at off.
func (p Pattern) matchAt(data []byte, off int) bool {
	if off < 0 || off+len(p.Bytes) > len(data) {
		return false
	}
	for i, b := range p.Bytes {
		if p.Any[i] {
			continue
		}
		if data[off+i] != b {
			return false
		}
	}
	return true
}

// index returns the first position in [from, to] where p matches, or -1.
func (p Pattern) index(data []byte, from, to int) int {
	if to > len(data)-len(p.Bytes) {
		to = len(data) - len(p.Bytes)
	}
	for off := from; off <= to; off++ {
		if p.matchAt(data, off) {
			return off
		}
	}
	return -1
}
