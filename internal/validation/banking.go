package validation

import (
	"math/big"
	"regexp"
	"strings"
)

var (
	bicRegex           = regexp.MustCompile(`^[A-Z]{4}[A-Z]{2}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	currencyRegex      = regexp.MustCompile(`^[A-Z]{3}$`)
	countryRegex       = regexp.MustCompile(`^[A-Z]{2}$`)
	accountNumberRegex = regexp.MustCompile(`^[0-9]{4,17}$`)
	ibanCharsRegex     = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]+$`)
)

// ibanLengths lists the IBAN length of each country that uses IBANs.
var ibanLengths = map[string]int{
	"AD": 24, "AE": 23, "AT": 20, "BE": 16, "BG": 22, "CH": 21, "CY": 28,
	"CZ": 24, "DE": 22, "DK": 18, "EE": 20, "ES": 24, "FI": 18, "FR": 27,
	"GB": 22, "GR": 27, "HR": 21, "HU": 28, "IE": 22, "IS": 26, "IT": 27,
	"LI": 21, "LT": 20, "LU": 20, "LV": 21, "MC": 27, "MT": 31, "NL": 18,
	"NO": 15, "PL": 28, "PT": 25, "RO": 24, "SA": 24, "SE": 24, "SI": 19,
	"SK": 24, "SM": 27, "TR": 26,
}

// supportedCurrencies are the currencies accounts and transfers may use.
var supportedCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CAD": true, "CHF": true,
	"AUD": true, "SEK": true, "NOK": true, "DKK": true, "PLN": true,
}

// UsesIBAN reports whether accounts in the country are identified by IBAN.
func UsesIBAN(country string) bool {
	_, ok := ibanLengths[strings.ToUpper(country)]
	return ok
}

// NormalizeIBAN strips spaces and upper-cases.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}

// ValidIBAN checks the country length and the ISO 13616 mod-97 checksum.
func ValidIBAN(iban string) bool {
	iban = NormalizeIBAN(iban)
	if !ibanCharsRegex.MatchString(iban) {
		return false
	}
	if want, ok := ibanLengths[iban[:2]]; !ok || len(iban) != want {
		return false
	}

	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			digits.WriteString(big.NewInt(int64(r-'A') + 10).String())
		} else {
			digits.WriteRune(r)
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

// ValidABA checks a 9-digit routing number with the 3-7-1 weighted checksum.
func ValidABA(routing string) bool {
	if len(routing) != 9 {
		return false
	}
	weights := [9]int{3, 7, 1, 3, 7, 1, 3, 7, 1}
	sum := 0
	for i, r := range routing {
		if r < '0' || r > '9' {
			return false
		}
		sum += int(r-'0') * weights[i]
	}
	return sum != 0 && sum%10 == 0
}

// ValidBIC checks the 8 or 11 character SWIFT format.
func ValidBIC(bic string) bool {
	return bicRegex.MatchString(strings.ToUpper(strings.TrimSpace(bic)))
}

func ValidCurrency(code string) bool {
	return currencyRegex.MatchString(code) && supportedCurrencies[code]
}

func ValidCountry(code string) bool {
	return countryRegex.MatchString(code)
}
