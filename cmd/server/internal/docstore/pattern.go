package docstore

import "strings"

// MatchPath reports whether a document path matches a trigger pattern.
// Patterns use literal collection segments and {name} placeholders for
// document IDs, e.g. "queues/{queueID}/items/{itemID}".
func MatchPath(pattern, path string) bool {
	pseg := strings.Split(pattern, "/")
	dseg := strings.Split(path, "/")
	if len(pseg) != len(dseg) {
		return false
	}
	for i, p := range pseg {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if dseg[i] == "" {
				return false
			}
			continue
		}
		if p != dseg[i] {
			return false
		}
	}
	return true
}
