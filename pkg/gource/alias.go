package gource

import (
	"errors"
	"fmt"
	"strings"
)

// aliasSeparator splits the raw identity from the display identity in a
// command-line alias mapping.
const aliasSeparator = "::"

// delimiterEscape replaces the output field delimiter inside identities.
const delimiterEscape = "#"

// ErrMalformedAlias indicates an alias mapping that is not RAW::DISPLAY
// with both sides non-empty.
var ErrMalformedAlias = errors.New("alias must be RAW::DISPLAY with both sides non-empty")

// AliasTable maps escaped raw author identities to display identities.
// Built once before processing and read-only afterwards, so concurrent
// lookups from parallel workers need no locking.
type AliasTable map[string]string

// ParseAliases builds an AliasTable from RAW::DISPLAY mappings. The raw
// side is delimiter-escaped so lookups match escaped identities; the
// display side is stored verbatim. Later mappings overwrite earlier ones
// for the same raw identity.
func ParseAliases(specs []string) (AliasTable, error) {
	table := make(AliasTable, len(specs))

	err := table.Add(specs)
	if err != nil {
		return nil, err
	}

	return table, nil
}

// Add parses RAW::DISPLAY mappings into the table, overwriting existing
// entries for the same raw identity.
func (t AliasTable) Add(specs []string) error {
	for _, spec := range specs {
		raw, display, ok := strings.Cut(spec, aliasSeparator)
		if !ok || raw == "" || display == "" {
			return fmt.Errorf("%q: %w", spec, ErrMalformedAlias)
		}

		t[EscapeIdentity(raw)] = display
	}

	return nil
}

// Resolve escapes the raw identity and looks it up. A hit substitutes the
// display identity verbatim; the operator is responsible for supplying a
// delimiter-safe replacement. A miss passes the escaped identity through.
func (t AliasTable) Resolve(raw string) string {
	escaped := EscapeIdentity(raw)

	display, ok := t[escaped]
	if !ok {
		return escaped
	}

	return display
}

// EscapeIdentity replaces every literal pipe in an identity with "#".
// The pipe is the output field delimiter and must never appear verbatim
// in an author field.
func EscapeIdentity(s string) string {
	return strings.ReplaceAll(s, "|", delimiterEscape)
}
