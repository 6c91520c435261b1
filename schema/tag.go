package schema

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseTag splits annotation text into annotations.
//
// Entries are comma separated and take the form key or key=value. Values
// are kept verbatim. Commas inside brackets or quoted literals do not split
// entries, so default=inherit.Set([]int{1, 2}) parses as one entry.
func ParseTag(raw string) ([]Annotation, error) {
	var (
		out   []Annotation
		start int
		depth int
		quote rune
		esc   bool
	)
	flush := func(end int) error {
		entry := strings.TrimSpace(raw[start:end])
		start = end + 1
		if entry == "" {
			return nil
		}
		ann, err := parseEntry(entry)
		if err != nil {
			return err
		}
		out = append(out, ann)
		return nil
	}

	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		switch {
		case esc:
			esc = false
		case quote != 0:
			switch {
			case r == '\\' && quote != '`':
				esc = true
			case r == quote:
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			if depth == 0 {
				return nil, fmt.Errorf("%w: unbalanced %q in %q", ErrMalformedAnnotation, r, raw)
			}
			depth--
		case r == ',' && depth == 0:
			if err := flush(i); err != nil {
				return nil, err
			}
		}
		i += size
	}
	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrMalformedAnnotation, raw)
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced brackets in %q", ErrMalformedAnnotation, raw)
	}
	if err := flush(len(raw)); err != nil {
		return nil, err
	}
	return out, nil
}

func parseEntry(entry string) (Annotation, error) {
	key, value, hasValue := strings.Cut(entry, "=")
	key = strings.TrimSpace(key)
	if key == "" || strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return Annotation{}, fmt.Errorf("%w: bad key in %q", ErrMalformedAnnotation, entry)
	}
	ann := Annotation{Key: key, HasValue: hasValue, Raw: entry}
	if !hasValue {
		return ann, nil
	}
	ann.Value = strings.TrimSpace(value)
	return ann, nil
}
