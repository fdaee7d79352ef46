// Package mooparse is the MOO object-dump parser/printer. The rest of
// the store treats it as a black box: parse(text) -> ObjDef and
// dump(ObjDef) -> text. The wire format itself is this package's own
// concern and is not specified by callers.
package mooparse

import (
	"fmt"
	"strings"
)

// Verb is one MOO verb definition. Aliases is the full alias set; the
// diff engine (internal/objdiff) treats the alias set as a single verb
// keyed by its first alias.
type Verb struct {
	Aliases []string
	Perms   string
	Body    string
}

// Property is one MOO property definition.
type Property struct {
	Name  string
	Perms string
	Value string
}

// ObjDef is the parsed form of one object dump.
type ObjDef struct {
	Name       string
	Parent     string
	Owner      string
	Verbs      []Verb
	Properties []Property
}

// FirstAlias returns the verb's presentation key.
func (v Verb) FirstAlias() string {
	if len(v.Aliases) == 0 {
		return ""
	}
	return v.Aliases[0]
}

// AliasSet returns the verb's aliases as a set for intersection tests.
func (v Verb) AliasSet() map[string]struct{} {
	set := make(map[string]struct{}, len(v.Aliases))
	for _, a := range v.Aliases {
		set[a] = struct{}{}
	}
	return set
}

// NormalizeBody strips trailing whitespace per line and trims the
// final trailing newline — the canonical form used for body equality.
func NormalizeBody(body string) string {
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	out := strings.Join(lines, "\n")
	return strings.TrimRight(out, "\n")
}

// PropertyNamed looks up a property by name.
func (d *ObjDef) PropertyNamed(name string) (Property, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// VerbByFirstAlias looks up a verb by its presentation key.
func (d *ObjDef) VerbByFirstAlias(alias string) (Verb, bool) {
	for _, v := range d.Verbs {
		if v.FirstAlias() == alias {
			return v, true
		}
	}
	return Verb{}, false
}

// Parse reads the textual object dump format into an ObjDef.
//
// Format (one object per dump):
//
//	name: <string>
//	parent: <string>
//	owner: <string>
//	verb <alias> [<alias> ...] (<perms>)
//	  <body line>
//	  ...
//	endverb
//	property <name> (<perms>) = <value>
//
// Unknown lines outside a verb body are ignored rather than rejected,
// matching the spec's treatment of the parser as an opaque collaborator
// — callers that need strictness should validate before calling Parse.
func Parse(text string) (*ObjDef, error) {
	def := &ObjDef{}
	lines := strings.Split(text, "\n")

	var inVerb bool
	var verb Verb
	var bodyLines []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if inVerb {
			if strings.EqualFold(trimmed, "endverb") {
				verb.Body = strings.Join(bodyLines, "\n")
				def.Verbs = append(def.Verbs, verb)
				inVerb = false
				bodyLines = nil
				continue
			}
			bodyLines = append(bodyLines, line)
			continue
		}

		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "name:"):
			def.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, "name:"))
		case strings.HasPrefix(trimmed, "parent:"):
			def.Parent = strings.TrimSpace(strings.TrimPrefix(trimmed, "parent:"))
		case strings.HasPrefix(trimmed, "owner:"):
			def.Owner = strings.TrimSpace(strings.TrimPrefix(trimmed, "owner:"))
		case strings.HasPrefix(trimmed, "verb "):
			header := strings.TrimSpace(strings.TrimPrefix(trimmed, "verb "))
			aliases, perms, err := parseVerbHeader(header)
			if err != nil {
				return nil, fmt.Errorf("mooparse: line %d: %w", i+1, err)
			}
			verb = Verb{Aliases: aliases, Perms: perms}
			inVerb = true
		case strings.HasPrefix(trimmed, "property "):
			prop, err := parsePropertyLine(strings.TrimPrefix(trimmed, "property "))
			if err != nil {
				return nil, fmt.Errorf("mooparse: line %d: %w", i+1, err)
			}
			def.Properties = append(def.Properties, prop)
		default:
			// Ignore unrecognized lines; the parser is tolerant by design.
		}
	}

	if inVerb {
		return nil, fmt.Errorf("mooparse: unterminated verb %q", verb.FirstAlias())
	}

	return def, nil
}

func parseVerbHeader(header string) (aliases []string, perms string, err error) {
	open := strings.LastIndex(header, "(")
	closeParen := strings.LastIndex(header, ")")
	if open >= 0 && closeParen > open {
		perms = strings.TrimSpace(header[open+1 : closeParen])
		header = strings.TrimSpace(header[:open])
	}
	aliases = strings.Fields(header)
	if len(aliases) == 0 {
		return nil, "", fmt.Errorf("verb with no aliases")
	}
	return aliases, perms, nil
}

func parsePropertyLine(rest string) (Property, error) {
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return Property{}, fmt.Errorf("property missing '='")
	}
	head := strings.TrimSpace(rest[:eq])
	value := strings.TrimSpace(rest[eq+1:])

	name := head
	perms := ""
	if open := strings.Index(head, "("); open >= 0 {
		if cl := strings.Index(head, ")"); cl > open {
			perms = strings.TrimSpace(head[open+1 : cl])
			name = strings.TrimSpace(head[:open])
		}
	}
	return Property{Name: name, Perms: perms, Value: value}, nil
}

// Dump renders an ObjDef back to the textual dump format. Verbs and
// properties are emitted in their stored order to keep round-trips
// stable for content addressing.
func Dump(d *ObjDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", d.Name)
	if d.Parent != "" {
		fmt.Fprintf(&b, "parent: %s\n", d.Parent)
	}
	if d.Owner != "" {
		fmt.Fprintf(&b, "owner: %s\n", d.Owner)
	}
	for _, v := range d.Verbs {
		fmt.Fprintf(&b, "verb %s (%s)\n", strings.Join(v.Aliases, " "), v.Perms)
		if v.Body != "" {
			b.WriteString(v.Body)
			b.WriteString("\n")
		}
		b.WriteString("endverb\n")
	}
	for _, p := range d.Properties {
		fmt.Fprintf(&b, "property %s (%s) = %s\n", p.Name, p.Perms, p.Value)
	}
	return b.String()
}
