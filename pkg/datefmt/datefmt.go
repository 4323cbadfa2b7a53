// Package datefmt formats publication dates as "dd MMM yyyy" with localized
// month abbreviations.
package datefmt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

var (
	ErrUnsupportedLocale = errors.New("unsupported locale")
	ErrEmptyDate         = errors.New("empty date")
)

// Layouts accepted by Parse. The content service emits offsets without a colon.
var layouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	time.RFC3339Nano,
}

var supported = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
	language.Spanish,
}

var shortMonths = map[language.Tag][12]string{
	language.BrazilianPortuguese: {"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	language.English:             {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	language.Spanish:             {"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
}

var matcher = language.NewMatcher(supported)

type Formatter struct {
	tag    language.Tag
	months [12]string
	loc    *time.Location
}

// New returns a Formatter for the closest supported match of locale.
// Dates are converted to loc before formatting; a nil loc means UTC.
func New(locale string, loc *time.Location) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedLocale, locale, err)
	}

	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
	}

	if loc == nil {
		loc = time.UTC
	}

	matched := supported[idx]
	return &Formatter{
		tag:    matched,
		months: shortMonths[matched],
		loc:    loc,
	}, nil
}

// Tag returns the locale the formatter was matched to.
func (f *Formatter) Tag() language.Tag {
	return f.tag
}

// Format renders t as two-digit day, abbreviated month and four-digit year.
func (f *Formatter) Format(t time.Time) string {
	t = t.In(f.loc)
	return fmt.Sprintf("%02d %s %04d", t.Day(), f.months[t.Month()-1], t.Year())
}

// Parse reads a publication timestamp in any of the accepted layouts.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyDate
	}

	var firstErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return time.Time{}, firstErr
}
