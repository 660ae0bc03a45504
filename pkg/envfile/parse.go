// SPDX-License-Identifier: MPL-2.0

package envfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses a crucible configuration file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration at %s: %w", path, err)
	}
	return ParseBytes(data, path)
}

// ParseBytes parses configuration content from bytes. The path parameter is
// used only for error reporting and the resulting File's FilePath.
func ParseBytes(data []byte, path string) (*File, error) {
	order, err := scanEnvOrder(data, path)
	if err != nil {
		return nil, err
	}

	var f File
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, &ConfigError{
			Kind:   ConfigMalformed,
			Path:   path,
			Detail: decodeErrorDetail(err),
		}
	}

	f.FilePath = path
	f.order = order
	if f.Envs == nil {
		f.Envs = make(map[string]*EnvironmentSpec)
	}
	for name, spec := range f.Envs {
		spec.Name = name
	}
	// Environments written inline (env = {...}) never hit the section
	// scanner; give them a stable position after the sectioned ones.
	inOrder := make(map[string]bool, len(order))
	for _, name := range order {
		inOrder[name] = true
	}
	for _, name := range slices.Sorted(maps.Keys(f.Envs)) {
		if !inOrder[name] {
			f.order = append(f.order, name)
		}
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// scanEnvOrder recovers the declaration order of [env.NAME] sections from
// the raw document, since decoded TOML tables are unordered. It also
// catches duplicate sections, which must surface as ConfigDuplicateName
// rather than a generic syntax error.
//
// TOML allows a sub-table header like [env.tests.set_env] before its
// parent section; such a header creates the environment implicitly, and
// exactly one later plain [env.tests] header is still legal. Only a second
// plain header is a duplicate.
func scanEnvOrder(data []byte, path string) ([]string, error) {
	var order []string
	seen := make(map[string]int)
	explicit := make(map[string]bool)

	var strs stringTracker
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Text()
		// Section-shaped lines inside multi-line string bodies are data,
		// not headers.
		if strs.consumeLine(raw) {
			continue
		}
		text := strings.TrimSpace(raw)
		if !strings.HasPrefix(text, "[env.") {
			continue
		}
		end := strings.IndexByte(text, ']')
		if end < 0 {
			continue
		}
		name := text[len("[env."):end]
		// Sub-tables like [env.tests.set_env] belong to their parent section.
		dotted := false
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
			dotted = true
		}
		if first, ok := seen[name]; ok {
			if dotted || !explicit[name] {
				if !dotted {
					explicit[name] = true
				}
				continue
			}
			return nil, &ConfigError{
				Kind:   ConfigDuplicateName,
				Path:   path,
				Env:    name,
				Detail: fmt.Sprintf("section redefined at line %d (first defined at line %d)", line, first),
			}
		}
		seen[name] = line
		explicit[name] = !dotted
		order = append(order, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan configuration: %w", err)
	}
	return order, nil
}

// stringTracker follows TOML string syntax across lines so the section
// scanner can tell real headers from header-shaped text inside multi-line
// string bodies.
type stringTracker struct {
	open  bool
	delim string
}

// consumeLine advances the tracker across one raw line and reports whether
// the line started inside a multi-line string.
func (s *stringTracker) consumeLine(text string) (startedInString bool) {
	startedInString = s.open
	i := 0
	for i < len(text) {
		if s.open {
			j := strings.Index(text[i:], s.delim)
			if j < 0 {
				return
			}
			i += j + len(s.delim)
			s.open = false
			continue
		}
		switch c := text[i]; c {
		case '#':
			// Comment runs to end of line.
			return
		case '"', '\'':
			triple := strings.Repeat(string(c), 3)
			if strings.HasPrefix(text[i:], triple) {
				s.open = true
				s.delim = triple
				i += len(triple)
				continue
			}
			j := i + 1
			for j < len(text) && text[j] != c {
				if c == '"' && text[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(text) {
				// Unterminated on this line; the decoder reports it.
				return
			}
			i = j + 1
		default:
			i++
		}
	}
	return
}

// decodeErrorDetail extracts a precise location from go-toml decode errors
// when one is available.
func decodeErrorDetail(err error) string {
	var de *toml.DecodeError
	if errors.As(err, &de) {
		row, col := de.Position()
		return fmt.Sprintf("line %d, column %d: %s", row, col, de.Error())
	}
	var sme *toml.StrictMissingError
	if errors.As(err, &sme) {
		return "unknown keys: " + sme.String()
	}
	return err.Error()
}
