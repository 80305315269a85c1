package config

import (
	"regexp"
	"strconv"
	"strings"

	serrors "github.com/semantica-dev/semantica/internal/errors"
)

// sizePattern matches a decimal number followed by a binary unit,
// e.g. "1MB", "500KB", "1.5GB". A bare "B" suffix or no suffix means bytes.
var sizePattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*(B|KB|MB|GB|TB)?$`)

var sizeUnits = map[string]float64{
	"":   1,
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// ParseSize converts a human-readable size string into bytes.
// Units are binary: "1MB" is 1048576, "500KB" is 512000, "1.5GB" is
// 1610612736. Invalid strings fail with a config-error.
func ParseSize(s string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	m := sizePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return 0, serrors.Newf(serrors.KindConfig, "invalid size %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, serrors.Wrap(serrors.KindConfig, "invalid size "+s, err)
	}
	return int64(value * sizeUnits[m[2]]), nil
}
