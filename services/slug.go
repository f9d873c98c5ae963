package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"article-cms/models"
)

// reservedSegments cannot start an article path: they are served by the
// application itself.
var reservedSegments = map[string]bool{
	models.RootPath: true,
	"pub":           true,
	"api":           true,
	"admin":         true,
	"pages":         true,
	"health":        true,
	"collab":        true,
	"login":         true,
	"logout":        true,
	"register":      true,
	"profile":       true,
	"assets":        true,
	"static":        true,
}

var roleNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Slugify turns a title into its url path: lower case, whitespace becomes "_",
// "/" separates sub-pages and any other punctuation is dropped.
func Slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r == '/' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	segments := strings.Split(b.String(), "/")
	kept := segments[:0]
	for _, seg := range segments {
		if seg != "" {
			kept = append(kept, seg)
		}
	}
	return strings.Join(kept, "/")
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return models.ErrorValidation{Field: "title", Message: "title is required"}
	}
	slug := Slugify(title)
	if slug == "" {
		return models.ErrorValidation{Field: "title", Message: "title must contain letters or digits"}
	}
	first := strings.SplitN(slug, "/", 2)[0]
	if reservedSegments[first] {
		return models.ErrorValidation{Field: "title", Message: "\"" + first + "\" is a reserved word"}
	}
	return nil
}

// normalizeRoleList trims a comma separated role list. An empty list means
// "no restriction" and is stored as nil.
func normalizeRoleList(roles *string) (*string, error) {
	if roles == nil {
		return nil, nil
	}
	parts := strings.Split(*roles, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !roleNamePattern.MatchString(part) {
			return nil, models.ErrorValidation{Field: "role_list", Message: "invalid role name \"" + part + "\""}
		}
		cleaned = append(cleaned, part)
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	joined := strings.Join(cleaned, ",")
	return &joined, nil
}

// trimFoldPrefix removes prefix from s under simple case folding, comparing
// rune by rune so the cut always falls on a rune boundary of s.
func trimFoldPrefix(s, prefix string) (string, bool) {
	rest := s
	for _, pr := range prefix {
		r, size := utf8.DecodeRuneInString(rest)
		if size == 0 || !strings.EqualFold(string(r), string(pr)) {
			return s, false
		}
		rest = rest[size:]
	}
	return rest, true
}
