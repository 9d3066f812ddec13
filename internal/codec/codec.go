// Package codec parses and serializes the structured commit message grammar
// defined in docs/COMMITS.md: a typed subject line naming the plan line,
// a mandatory blank line, then an ordered key-value body carrying the
// PatchBlock record. Parsing and formatting are pure functions over text;
// format is the exact inverse of a successful parse.
package codec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// Body keys in their required order. contraintes is the historical wire
// spelling and must not be normalized.
const (
	KeyPatchID     = "patch_id"
	KeyStatus      = "status"
	KeyConstraints = "contraintes"
	KeyNotes       = "notes"
	KeySource      = "commit_source"
)

// keyOrder is the required body key order.
var keyOrder = []string{KeyPatchID, KeyStatus, KeyConstraints, KeyNotes, KeySource}

// recognizedKeys is the set of keys the body grammar admits.
var recognizedKeys = map[string]bool{
	KeyPatchID:     true,
	KeyStatus:      true,
	KeyConstraints: true,
	KeyNotes:       true,
	KeySource:      true,
}

// subjectPattern matches the conventional subject line.
var subjectPattern = regexp.MustCompile(
	`^(feat|fix|chore|refactor|docs|test|perf|build|ci)\(mARCH\): (PL-\d+) (\S+) (\S+)$`)

// bodyLinePattern matches one key-value body line.
var bodyLinePattern = regexp.MustCompile(`^([a-z_]+): (.*)$`)

// ErrorKind classifies metadata parse failures.
type ErrorKind string

// Parse error kinds.
const (
	KindMalformedLine     ErrorKind = "MalformedLine"
	KindUnrecognizedKey   ErrorKind = "UnrecognizedKey"
	KindMissingField      ErrorKind = "MissingField"
	KindInvalidEnum       ErrorKind = "InvalidEnum"
	KindInvalidIdentifier ErrorKind = "InvalidIdentifier"
	KindBadSubject        ErrorKind = "BadSubject"
)

// ParseError describes a malformed commit message. It carries the offending
// line so the operator can inspect the commit directly. Always recoverable.
type ParseError struct {
	Kind ErrorKind
	Line string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("metadata parse error (%s): %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("metadata parse error (%s): %s: %q", e.Kind, e.Msg, e.Line)
}

// Subject is the parsed subject line of a conventional commit message.
type Subject struct {
	Type       string
	PlanLineID string
	Role       string
	Module     string
}

// ParseMessage parses a full commit message: subject, mandatory blank line,
// key-value body.
func ParseMessage(message string) (Subject, types.PatchBlock, error) {
	normalized := strings.ReplaceAll(message, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(normalized, "\n"), "\n")

	subject, err := ParseSubject(lines[0])
	if err != nil {
		return Subject{}, types.PatchBlock{}, err
	}
	if len(lines) < 3 || lines[1] != "" {
		return Subject{}, types.PatchBlock{}, &ParseError{
			Kind: KindMalformedLine,
			Msg:  "subject must be separated from body by a blank line",
		}
	}

	pb, err := ParseBody(strings.Join(lines[2:], "\n"))
	if err != nil {
		return Subject{}, types.PatchBlock{}, err
	}
	return subject, pb, nil
}

// ParseSubject validates a subject line against the conventional grammar.
func ParseSubject(line string) (Subject, error) {
	m := subjectPattern.FindStringSubmatch(line)
	if m == nil {
		return Subject{}, &ParseError{
			Kind: KindBadSubject,
			Line: line,
			Msg:  "subject does not match type(mARCH): PL-n role module",
		}
	}
	return Subject{Type: m[1], PlanLineID: m[2], Role: m[3], Module: m[4]}, nil
}

// ParseBody parses the key-value body of a commit message into a PatchBlock.
// Keys must appear in their required order; unknown keys fail, as do missing
// mandatory fields and values outside the closed enumerations.
func ParseBody(body string) (types.PatchBlock, error) {
	var pb types.PatchBlock
	seen := map[string]bool{}
	next := 0 // index into keyOrder of the next admissible key

	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := bodyLinePattern.FindStringSubmatch(line)
		if m == nil {
			return types.PatchBlock{}, &ParseError{
				Kind: KindMalformedLine,
				Line: line,
				Msg:  "body line does not match key: value",
			}
		}
		key, value := m[1], m[2]
		if !recognizedKeys[key] {
			return types.PatchBlock{}, &ParseError{
				Kind: KindUnrecognizedKey,
				Line: line,
				Msg:  fmt.Sprintf("unrecognized key %q", key),
			}
		}

		// Advance through the required order to this key. A recognized
		// key that appears before its position (or twice) is a grammar
		// violation.
		pos := keyIndex(key)
		if pos < next || seen[key] {
			return types.PatchBlock{}, &ParseError{
				Kind: KindUnrecognizedKey,
				Line: line,
				Msg:  fmt.Sprintf("key %q out of required order", key),
			}
		}
		next = pos + 1
		seen[key] = true

		switch key {
		case KeyPatchID:
			pb.PatchID = value
		case KeyStatus:
			pb.Status = value
		case KeyConstraints:
			pb.Constraints = value
		case KeyNotes:
			pb.Notes = value
		case KeySource:
			pb.Source = value
		}
	}

	for _, key := range []string{KeyPatchID, KeyStatus, KeySource} {
		if !seen[key] {
			return types.PatchBlock{}, &ParseError{
				Kind: KindMissingField,
				Msg:  fmt.Sprintf("missing mandatory field %q", key),
			}
		}
	}
	if !types.ValidPatchID(pb.PatchID) {
		return types.PatchBlock{}, &ParseError{
			Kind: KindInvalidIdentifier,
			Line: KeyPatchID + ": " + pb.PatchID,
			Msg:  fmt.Sprintf("patch_id %q does not match PB-YYYYMMDD-NNNN or RB-YYYYMMDD-XXXX", pb.PatchID),
		}
	}
	if !types.ValidStatus(pb.Status) {
		return types.PatchBlock{}, &ParseError{
			Kind: KindInvalidEnum,
			Line: KeyStatus + ": " + pb.Status,
			Msg:  fmt.Sprintf("status %q is not accepted, rejected, or partial", pb.Status),
		}
	}
	if !types.ValidSource(pb.Source) {
		return types.PatchBlock{}, &ParseError{
			Kind: KindInvalidEnum,
			Line: KeySource + ": " + pb.Source,
			Msg:  fmt.Sprintf("commit_source %q is not a recognized source", pb.Source),
		}
	}
	return pb, nil
}

// FormatBody serializes a PatchBlock as the key-value body, byte-identical
// key order, no trailing whitespace. Optional fields are emitted only when
// set, so parse(format(p)) == p for every valid PatchBlock.
func FormatBody(pb types.PatchBlock) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", KeyPatchID, pb.PatchID)
	fmt.Fprintf(&b, "%s: %s\n", KeyStatus, pb.Status)
	if pb.Constraints != "" {
		fmt.Fprintf(&b, "%s: %s\n", KeyConstraints, pb.Constraints)
	}
	if pb.Notes != "" {
		fmt.Fprintf(&b, "%s: %s\n", KeyNotes, pb.Notes)
	}
	fmt.Fprintf(&b, "%s: %s", KeySource, pb.Source)
	return b.String()
}

// FormatMessage serializes a full commit message from subject and PatchBlock.
func FormatMessage(subject Subject, pb types.PatchBlock) string {
	return fmt.Sprintf("%s(mARCH): %s %s %s\n\n%s",
		subject.Type, subject.PlanLineID, subject.Role, subject.Module,
		FormatBody(pb))
}

func keyIndex(key string) int {
	for i, k := range keyOrder {
		if k == key {
			return i
		}
	}
	return -1
}
