package features

import (
	"regexp"
	"strings"
)

// DefaultSpeed applies when no rule matches.
const DefaultSpeed = 45

// SpeedRule maps an address pattern to a posted speed in mph.
type SpeedRule struct {
	Name  string
	Match *regexp.Regexp
	Limit float64
}

// SpeedRules is evaluated in order; the first match wins.
var SpeedRules = []SpeedRule{
	{
		Name:  "highway",
		Match: regexp.MustCompile(`\b(I-?\s?\d+|INTERSTATE|HWY|HIGHWAY|FWY|FREEWAY|EXPY|EXPRESSWAY|US\s?-?\d+|NC\s?-?\d+)\b`),
		Limit: 70,
	},
	{
		Name:  "arterial",
		Match: regexp.MustCompile(`\b(BLVD|PKWY|PARKWAY|RD|ROAD|AVE?|AV)\b`),
		Limit: 45,
	},
	{
		Name:  "ramp",
		Match: regexp.MustCompile(`\b(RAMP|RP|EXIT|ENTRANCE)\b`),
		Limit: 35,
	},
	{
		Name:  "ordinal",
		Match: regexp.MustCompile(`\d+(ST|ND|RD|TH)\b`),
		Limit: 35,
	},
}

// InferSpeed returns the limit of the first rule matching address.
func InferSpeed(address string, rules []SpeedRule) float64 {
	address = strings.ToUpper(address)
	for _, r := range rules {
		if r.Match.MatchString(address) {
			return r.Limit
		}
	}
	return DefaultSpeed
}
