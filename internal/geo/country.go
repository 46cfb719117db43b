package geo

import (
	"strings"

	"github.com/biter777/countries"
)

// aliases covers spellings used by the labor-market datasets that the
// country registry does not know.
var aliases = map[string]string{
	"czechia":       "Czech Republic",
	"south korea":   "Korea, Republic of",
	"united states": "United States of America",
	"hong kong":     "Hong Kong",
	"uk":            "United Kingdom",
}

// CountryCode resolves a country name to its ISO 3166-1 numeric code.
func CountryCode(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	if alias, ok := aliases[strings.ToLower(name)]; ok {
		if code := countries.ByName(alias); code != countries.Unknown {
			return int(code), true
		}
	}
	code := countries.ByName(name)
	if code == countries.Unknown {
		return 0, false
	}
	return int(code), true
}
