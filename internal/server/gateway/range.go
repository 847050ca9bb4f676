package gateway

import (
	"regexp"
	"strconv"

	"hlsgate/pkg/object"
)

var rangePattern = regexp.MustCompile(`^bytes=(\d+)-(\d+)?$`)

// parseRange interprets a single-range bytes header. Anything it cannot
// parse (multi-range, suffix form, other units, bad numbers, end before
// start) is treated as no range at all and the caller performs a full
// read; media players recover from a 200 where they asked for a 206.
func parseRange(header string) *object.Range {
	if header == "" {
		return nil
	}
	m := rangePattern.FindStringSubmatch(header)
	if m == nil {
		return nil
	}
	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || start < 0 {
		return nil
	}
	if m[2] == "" {
		return &object.Range{Start: start, End: -1}
	}
	end, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || end < start {
		return nil
	}
	return &object.Range{Start: start, End: end}
}
