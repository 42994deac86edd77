package filtering

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// SimIDPlaceholder must appear in every map filename template.
const SimIDPlaceholder = "{sim_id}"

// Matches {sim_id} with an optional zero-pad width, e.g. {sim_id:04d}.
var simIDPattern = regexp.MustCompile(`\{sim_id(?::0(\d+)d)?\}`)

// MapFileName expands the simulation-id placeholder in a filename template.
func MapFileName(template string, simID int) (string, error) {
	if !simIDPattern.MatchString(template) {
		return "", fmt.Errorf("map filename template %q does not contain %s",
			template, SimIDPlaceholder)
	}
	out := simIDPattern.ReplaceAllStringFunc(template, func(m string) string {
		sub := simIDPattern.FindStringSubmatch(m)
		if sub[1] == "" {
			return fmt.Sprintf("%d", simID)
		}
		return fmt.Sprintf("%0*d", atoi(sub[1]), simID)
	})
	return out, nil
}

// AtomicNames derives the weighted-map and weight file names of one task.
// The names are a pure function of (sim id, obs id, wafer, freq channel):
// re-running a task overwrites its pair rather than duplicating it.
func AtomicNames(template string, simID int, obsID, wafer, freq string) (wmapName, weightsName string, err error) {
	base, err := MapFileName(template, simID)
	if err != nil {
		return "", "", err
	}
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext) +
		fmt.Sprintf("_obsid%s_%s_%s", obsID, wafer, freq)
	return stem + "_wmap" + ext, stem + "_w" + ext, nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
