// Package cachekey computes a stable hash over a rule's definition, the
// environment variables it declares, and the content of its input trees.
// It is a reservation for a future content-addressed build cache: nothing
// in the conductor or executor consults it today.
package cachekey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"os"
	"path/filepath"
	"sort"

	"github.com/lexspoon/hexmake/internal/hexfile"
)

// Key is a build hash rendered as a lowercase hex string.
type Key string

// Hash computes a Key for rule, given the names of the environment
// variables the spec declares (Spec.Environ), their current values, and
// the content of every input under workspaceRoot at the time of the
// call.
func Hash(workspaceRoot string, environNames []string, environValues map[string]string, rule hexfile.Rule) (Key, error) {
	h := sha256.New()

	hashRule(h, rule)
	hashEnv(h, environNames, environValues)
	if err := hashTrees(h, workspaceRoot, rule.Inputs); err != nil {
		return "", err
	}

	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

func hashRule(h hash.Hash, rule hexfile.Rule) {
	hashStrings(h, rule.Outputs)
	hashStrings(h, rule.Inputs)
	hashStrings(h, rule.Commands)
}

// hashEnv hashes every name in names (the spec's Environ list) together
// with its value looked up in environ, sorted by name so the hash does not
// depend on declaration order.
func hashEnv(h hash.Hash, names []string, environ map[string]string) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	hashUint64(h, uint64(len(sorted)))
	for _, name := range sorted {
		hashString(h, name)
		hashString(h, environ[name])
	}
}

func hashStrings(h hash.Hash, values []string) {
	hashUint64(h, uint64(len(values)))
	for _, v := range values {
		hashString(h, v)
	}
}

func hashUint64(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func hashString(h hash.Hash, s string) {
	hashBytes(h, []byte(s))
}

func hashBytes(h hash.Hash, b []byte) {
	hashUint64(h, uint64(len(b)))
	h.Write(b)
}

// hashTrees hashes each input path in order, as a file or as a recursively
// sorted directory tree.
func hashTrees(h hash.Hash, workspaceRoot string, paths []string) error {
	hashUint64(h, uint64(len(paths)))
	for _, p := range paths {
		if err := hashTree(h, filepath.Join(workspaceRoot, p)); err != nil {
			return err
		}
	}
	return nil
}

func hashTree(h hash.Hash, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		hashUint64(h, 0)
		contents, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		hashBytes(h, contents)
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	hashUint64(h, uint64(len(entries)))
	for _, entry := range entries {
		if err := hashTree(h, filepath.Join(path, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

