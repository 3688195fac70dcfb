// Package extract pulls the code payload out of a free-form model reply.
package extract

import (
	"regexp"
	"strings"
)

// fencedBlock matches the first ``` fenced block with an optional language tag.
var fencedBlock = regexp.MustCompile("(?s)```[\\w+#.-]*[ \\t]*\\r?\\n(.+?)\\r?\\n[ \\t]*```")

// Code returns the trimmed body of the first fenced block in raw,
// or raw itself trimmed when there is no block.
func Code(raw string) string {
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}
