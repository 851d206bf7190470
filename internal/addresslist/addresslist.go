// Package addresslist loads the list of addresses to query from a local file.
package addresslist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Read returns the non-blank lines of r, trimmed, in order. Duplicates are
// dropped. limit > 0 truncates the list.
func Read(r io.Reader, limit int) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read address list: %w", err)
	}
	return out, nil
}

// Load reads the address list at path.
func Load(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open address list: %w", err)
	}
	defer f.Close()
	return Read(f, limit)
}
