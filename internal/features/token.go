package features

import (
	"regexp"
	"strings"
)

// DefaultHighways are the interstate and US/NC route numbers through Charlotte.
var DefaultHighways = []string{"77", "85", "485", "277", "74", "29", "49", "16", "51", "21", "24", "27"}

var (
	alphaRun   = regexp.MustCompile(`[A-Z]{4,}`)
	numericRun = regexp.MustCompile(`[0-9]+`)
)

// Tokenizer extracts the road token used to match an address against
// reference road names.
type Tokenizer struct {
	highways map[string]bool
}

func NewTokenizer(highways []string) Tokenizer {
	set := make(map[string]bool, len(highways))
	for _, h := range highways {
		set[strings.TrimSpace(h)] = true
	}
	return Tokenizer{highways: set}
}

// Token returns a major-highway number found in address, else the first
// alphabetic run of four or more letters. Tokens are upper case.
func (t Tokenizer) Token(address string) (string, bool) {
	address = strings.ToUpper(address)
	for _, n := range numericRun.FindAllString(address, -1) {
		if t.highways[n] {
			return n, true
		}
	}
	if w := alphaRun.FindString(address); w != "" {
		return w, true
	}
	return "", false
}
