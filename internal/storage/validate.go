package storage

import (
	"regexp"
	"strings"
)

const maxCatalogueLen = 255

var catalogueRe = regexp.MustCompile(`^[a-z0-9_-]*$`)

// ParseSources splits free text on newlines and commas, trimming each entry
// and dropping blanks.
func ParseSources(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ',' || r == '\r' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func normalizeSources(in []string) []string {
	return ParseSources(strings.Join(in, "\n"))
}

func encodeSources(s []string) string { return strings.Join(s, "\n") }

func decodeSources(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

func validateCatalogue(name string) error {
	if len(name) > maxCatalogueLen {
		return invalid("catalogue_name", "must be at most %d characters", maxCatalogueLen)
	}
	if !catalogueRe.MatchString(name) {
		return invalid("catalogue_name", "%q may only contain lowercase letters, digits, '-' and '_'", name)
	}
	return nil
}

func (s *sqlStore) validateStrategies(download, save string) error {
	if strings.TrimSpace(download) == "" {
		return invalid("download_strategy", "is required")
	}
	if strings.TrimSpace(save) == "" {
		return invalid("save_strategy", "is required")
	}
	if s.strategyCheck != nil {
		if err := s.strategyCheck(download, save); err != nil {
			return &ValidationError{Field: "strategy", Reason: err.Error()}
		}
	}
	return nil
}

func (s *sqlStore) validateSources(src []string) error {
	if s.rejectEmptySources && len(src) == 0 {
		return invalid("sources", "at least one source is required")
	}
	return nil
}
