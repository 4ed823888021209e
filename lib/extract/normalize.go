package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var nonPriceChars = regexp.MustCompile(`[^\d,.]`)

// NormalizePrice turns displayed price text into a number.
//
// Everything but digits, commas and periods is stripped. A comma is always read as the
// decimal separator, so when one is present the periods are thousands separators and are
// dropped: "R$ 1.999,90" parses as 1999.90. The flip side is that "1,234.56" parses as
// 1.23456; that format is knowingly unsupported.
func NormalizePrice(raw string) (float64, error) {
	s := nonPriceChars.ReplaceAllString(raw, "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnparsablePrice, raw)
	}

	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparsablePrice, raw)
	}
	return price, nil
}
