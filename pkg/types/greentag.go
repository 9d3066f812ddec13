package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// tagNamePattern matches green-<YYYYMMDD>-<shortsha> tag names.
var tagNamePattern = regexp.MustCompile(`^green-(\d{8})-([0-9a-f]{4,40})$`)

// GreenTag marks a commit as verified stable. Every green tag resolves to a
// commit that has a verified archive; the Tag Ledger enforces this at write
// time.
type GreenTag struct {
	Name      string    `json:"name"`
	SHA       string    `json:"sha"`
	CreatedAt time.Time `json:"created_at"`
}

// TagName builds the canonical green tag name for a sha on the given day.
func TagName(day time.Time, sha string) string {
	return fmt.Sprintf("green-%s-%s", day.UTC().Format("20060102"), ShortSHA(sha))
}

// ShortSHA returns the abbreviated form of a commit sha used in tag names.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// ParseTagName splits a green tag name into its embedded date and short sha.
// Returns ErrTagNotFound for names outside the grammar so callers can treat
// malformed lookups as misses.
func ParseTagName(name string) (date, shortSHA string, err error) {
	m := tagNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", fmt.Errorf("%w: malformed tag name %q", ErrTagNotFound, name)
	}
	return m[1], m[2], nil
}

// ValidTagName reports whether name matches the green tag grammar.
func ValidTagName(name string) bool {
	return tagNamePattern.MatchString(name)
}

// Less orders green tags by embedded date, then lexicographically by short
// sha. Creation wall-clock never participates; it is not monotonic across
// machines.
func (g GreenTag) Less(other GreenTag) bool {
	gd, gs, gerr := ParseTagName(g.Name)
	od, os, oerr := ParseTagName(other.Name)
	if gerr != nil || oerr != nil {
		// Malformed names sort first so a well-formed tag always wins.
		return gerr != nil && oerr == nil
	}
	if gd != od {
		return gd < od
	}
	return strings.Compare(gs, os) < 0
}
