// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package compact

// AbbrevVersion is the version of the
// built-in property abbreviation table.
// Entries may be added in a new version,
// but an existing code never changes meaning.
const AbbrevVersion = 1

const (
	atomicProps  = "https://atomicdata.dev/properties/"
	companyProps = "https://common.terraphim.io/01jxw2jx8qze6yakh4fz24mnhy/property/"
)

// abbrevs maps well-known property URLs
// to their short codes. Codes are purely
// alphabetic so that they never collide
// with the decimal pool keys of other properties.
var abbrevs = map[string]string{
	atomicProps + "isA":          "t",
	atomicProps + "parent":       "p",
	atomicProps + "lastCommit":   "lc",
	atomicProps + "subresources": "sr",
	atomicProps + "name":         "n",
	atomicProps + "description":  "d",
	atomicProps + "shortname":    "s",
	atomicProps + "createdAt":    "ca",
	atomicProps + "createdBy":    "cb",
	atomicProps + "read":         "r",
	atomicProps + "write":        "w",
	atomicProps + "datatype":     "dt",
	atomicProps + "classtype":    "ct",
	atomicProps + "requires":     "rq",
	atomicProps + "recommends":   "rc",
	atomicProps + "allowsOnly":   "ao",
	atomicProps + "isDynamic":    "dy",
	atomicProps + "localId":      "li",
	atomicProps + "published":    "pb",
	atomicProps + "tags":         "tg",

	companyProps + "company-name":                "cn",
	companyProps + "company-description":         "cd",
	companyProps + "business-website":            "bw",
	companyProps + "year-of-incorporation":       "yi",
	companyProps + "company-registration-number": "rn",
	companyProps + "country-of-registration":     "cr",
	companyProps + "trading-name":                "tn",
	companyProps + "business-type":               "bt",
	companyProps + "annual-revenue":              "ar",
	companyProps + "number-of-employees":         "ne",
	companyProps + "years-in-business":           "yb",
	companyProps + "is-business-female-lead":     "fl",
	companyProps + "board-of-directors":          "bd",
	companyProps + "key-management-personnel":    "km",
	companyProps + "business-owners":             "bo",
	companyProps + "business-auditors":           "ba",
}

var expansions map[string]string

func init() {
	expansions = make(map[string]string, len(abbrevs))
	for url, code := range abbrevs {
		if _, dup := expansions[code]; dup {
			panic("compact: duplicate abbreviation code " + code)
		}
		expansions[code] = url
	}
}

// Abbreviate returns the short code for
// a well-known property URL.
func Abbreviate(url string) (string, bool) {
	code, ok := abbrevs[url]
	return code, ok
}

// Expand returns the property URL
// for an abbreviation code.
func Expand(code string) (string, bool) {
	url, ok := expansions[code]
	return url, ok
}
