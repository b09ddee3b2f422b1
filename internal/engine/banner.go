package engine

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
)

var (
	bannerParens = regexp.MustCompile(`\(([^)]*)\)`)
	bannerFields = regexp.MustCompile(`[, ]+`)
)

var monthNames = []string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// ParseBannerDate returns the build date in a FORM banner line as yyyymmdd.
//
//	FORM 4.3.1 (Apr 11 2023, v4.3.1) 64-bits  ->  20230411
func ParseBannerDate(banner string) (int, error) {
	if banner == "" {
		return 0, fmt.Errorf("parse banner date: no banner")
	}

	m := bannerParens.FindStringSubmatch(banner)
	if m == nil {
		return 0, fmt.Errorf("parse banner date: %q", banner)
	}

	s := bannerFields.Split(m[1], -1)
	if len(s) < 3 {
		return 0, fmt.Errorf("parse banner date: %q", banner)
	}

	month := slices.Index(monthNames, s[0]) + 1
	if month == 0 {
		return 0, fmt.Errorf("parse banner date: unknown month in %q", banner)
	}

	day, err := strconv.Atoi(s[1])
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("parse banner date: bad day in %q", banner)
	}

	year, err := strconv.Atoi(s[2])
	if err != nil || year < 1 {
		return 0, fmt.Errorf("parse banner date: bad year in %q", banner)
	}

	return year*10000 + month*100 + day, nil
}
