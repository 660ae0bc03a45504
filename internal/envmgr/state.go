// SPDX-License-Identifier: MPL-2.0

package envmgr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"crucible-cli/pkg/envfile"
)

// stateFileName is the per-environment install marker. Its presence plus a
// matching fingerprint is what makes an environment "fresh"; anything else
// is stale and triggers recreation.
const stateFileName = ".crucible-state.json"

// stateRecord is the persisted staleness marker, written only after a
// successful install.
type stateRecord struct {
	// Fingerprint is the content hash of the dependency source set.
	Fingerprint string `json:"fingerprint"`
	// CreatedAt is when the environment root was last (re)created.
	CreatedAt time.Time `json:"created_at"`
	// ToolVersion records which crucible build wrote the marker.
	ToolVersion string `json:"tool_version"`
}

// readState loads the state record from dir. A missing file returns
// (nil, nil): no marker simply means stale.
func readState(dir string) (*stateRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt marker is indistinguishable from no marker.
		return nil, nil
	}
	return &rec, nil
}

// writeState persists the state record into dir.
func writeState(dir string, rec *stateRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, stateFileName), data, 0o644)
}

// Fingerprint computes the content hash of an environment's dependency
// source set: each dependency entry in declared order (file references
// hashed by content, inline specifiers by text), the constraint file, and
// the installer argv. File references resolve relative to confDir. A
// referenced file that does not exist contributes an "absent" marker so the
// environment turns stale the moment the file appears.
func Fingerprint(spec *envfile.EnvironmentSpec, confDir string, installer []string, constraints string) (string, error) {
	h := sha256.New()

	for _, arg := range installer {
		fmt.Fprintf(h, "installer:%s\n", arg)
	}

	sources, err := spec.DepSources()
	if err != nil {
		return "", err
	}
	for _, src := range sources {
		switch src.Kind {
		case envfile.DepSpec:
			fmt.Fprintf(h, "spec:%s\n", src.Value)
		default:
			writeFileDigest(h, string(src.Kind), resolvePath(confDir, src.Value))
		}
	}

	if constraints != "" {
		writeFileDigest(h, "constraints", resolvePath(confDir, constraints))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeFileDigest folds a file's content (or its absence) into h.
func writeFileDigest(h io.Writer, label, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(h, "%s:absent:%s\n", label, path)
		return
	}
	sum := sha256.Sum256(data)
	fmt.Fprintf(h, "%s:%s:%s\n", label, path, hex.EncodeToString(sum[:]))
}

// resolvePath expands a possibly relative file reference against confDir.
func resolvePath(confDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(confDir, path)
}
