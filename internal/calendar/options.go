package calendar

import (
	"fmt"
	"strings"

	"invysia-calendar/internal/templates"
)

// AspectRatios and Resolutions are the choices offered to customers.
var (
	AspectRatios = []string{"9:16", "4:3", "3:4"}
	Resolutions  = []string{"1K", "2K", "4K"}
)

func ParseAspectRatio(value string) (string, error) {
	value = strings.TrimSpace(value)
	if err := templates.ValidateAspectRatio(value); err != nil {
		return "", err
	}
	return value, nil
}

func ParseResolution(value string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	for _, r := range Resolutions {
		if v == r {
			return r, nil
		}
	}
	return "", fmt.Errorf("unsupported resolution %q (want one of %s)", value, strings.Join(Resolutions, ", "))
}
