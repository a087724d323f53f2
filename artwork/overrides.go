package artwork

import (
	"bufio"
	"strings"
)

// Overrides maps a cleaned title to a metadata provider id. Keys are
// Unicode case-folded.
type Overrides map[string]string

// ParseOverrides reads one "Title=ExternalId" mapping per line. The first
// '=' splits the line; lines without '=' or with an empty side are skipped.
// Later lines win for duplicate titles.
func ParseOverrides(text string) Overrides {
	out := make(Overrides)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		title, id, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		title, id = strings.TrimSpace(title), strings.TrimSpace(id)
		if title == "" || id == "" {
			continue
		}
		out[foldKey(title)] = id
	}
	return out
}

func (o Overrides) Lookup(title string) (string, bool) {
	if len(o) == 0 {
		return "", false
	}
	id, ok := o[foldKey(strings.TrimSpace(title))]
	return id, ok
}
