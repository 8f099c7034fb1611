package enums

import "fmt"

// AccessDuration is the requested access length in months for partners that
// let the requester choose.
type AccessDuration int

const (
	AccessDurationOneMonth     AccessDuration = 1
	AccessDurationThreeMonths  AccessDuration = 3
	AccessDurationSixMonths    AccessDuration = 6
	AccessDurationTwelveMonths AccessDuration = 12
)

var validAccessDurations = []AccessDuration{
	AccessDurationOneMonth,
	AccessDurationThreeMonths,
	AccessDurationSixMonths,
	AccessDurationTwelveMonths,
}

// IsValid reports whether the value is an offered duration.
func (d AccessDuration) IsValid() bool {
	for _, candidate := range validAccessDurations {
		if candidate == d {
			return true
		}
	}
	return false
}

// Months returns the duration as a plain month count.
func (d AccessDuration) Months() int {
	return int(d)
}

// ParseAccessDuration converts raw input into AccessDuration.
func ParseAccessDuration(value int) (AccessDuration, error) {
	for _, candidate := range validAccessDurations {
		if int(candidate) == value {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("invalid access duration %d", value)
}
