package geo

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sentinelmesh/console/internal/ipaddr"
)

// Resolver maps a client address to a 2-letter country code. Implementations
// return "" when the country cannot be determined; lookup never fails hard,
// the access engine treats an empty result as "no geo signal".
type Resolver interface {
	Country(ip string) string
}

var countryCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// ValidCountryCode reports whether code is a plausible ISO 3166-1 alpha-2 code.
func ValidCountryCode(code string) bool {
	return countryCodeRe.MatchString(code)
}

// Disabled is a Resolver that never resolves a country.
type Disabled struct{}

func (Disabled) Country(string) string { return "" }

type tableEntry struct {
	cidr    string
	country string
}

// TableResolver resolves countries from a static list of CIDR-to-country
// mappings, scanned in insertion order. Suitable for the curated range tables
// shipped with the console; not a full GeoIP database.
type TableResolver struct {
	entries []tableEntry
}

// NewTableResolver returns an empty TableResolver.
func NewTableResolver() *TableResolver {
	return &TableResolver{}
}

// Add registers a CIDR (or single address) with a country code.
func (r *TableResolver) Add(cidr, country string) error {
	norm, err := ipaddr.Normalize(cidr)
	if err != nil {
		return err
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	if !ValidCountryCode(country) {
		return fmt.Errorf("invalid country code %q", country)
	}
	r.entries = append(r.entries, tableEntry{cidr: norm, country: country})
	return nil
}

// Country returns the country code of the first matching range, or "".
func (r *TableResolver) Country(ip string) string {
	norm, err := ipaddr.NormalizeIP(ip)
	if err != nil {
		return ""
	}
	for _, e := range r.entries {
		if ipaddr.Matches(norm, e.cidr) {
			return e.country
		}
	}
	return ""
}

// LoadTable reads a range table from path. Each line holds "cidr country",
// whitespace separated; blank lines and #-comments are skipped, malformed
// lines are dropped.
func LoadTable(path string) (*TableResolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geo table: %w", err)
	}
	defer f.Close()

	r := NewTableResolver()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		_ = r.Add(fields[0], fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read geo table: %w", err)
	}
	return r, nil
}
