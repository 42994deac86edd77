package dispatch

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadAllowList reads a restriction list of (obs_id, wafer, freq_channel)
// triples, one per line, fields separated by whitespace or commas. Blank
// lines and #-comments are ignored. Duplicate entries collapse: the result
// is a set.
func LoadAllowList(path string) (map[Atomic]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening allow list: %w", err)
	}
	defer f.Close()

	allow := make(map[Atomic]struct{})
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: want 3 fields (obs_id wafer freq), got %d",
				path, lineNo, len(fields))
		}
		allow[Atomic{ObsID: fields[0], Wafer: fields[1], Freq: fields[2]}] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading allow list: %w", err)
	}
	return allow, nil
}
