package types

import (
	"fmt"
	"sort"
	"strings"
)

var keyEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, "=", `\=`)

// Variant is one selected option of a product, e.g. size=M.
type Variant struct {
	Name  string `json:"name" validate:"required,max=60"`
	Value string `json:"value" validate:"required,max=60"`
}

// Variants is the selected option set of a line item. Order is not significant.
type Variants []Variant

// Validate rejects blank option names and names selected more than once.
// Names compare case-insensitively, matching Key.
func (v Variants) Validate() error {
	seen := make(map[string]struct{}, len(v))
	for _, variant := range v {
		name := strings.ToLower(strings.TrimSpace(variant.Name))
		if name == "" {
			return fmt.Errorf("variant name is required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("variant %q selected more than once", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Key returns the canonical encoding used to identify a line item within a
// cart: names lower-cased, pairs sorted, joined by ";". Backslash, ";" and
// "=" inside names and values are backslash-escaped so distinct sets never
// collide.
func (v Variants) Key() string {
	if len(v) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(v))
	for _, variant := range v {
		name := strings.ToLower(strings.TrimSpace(variant.Name))
		value := strings.TrimSpace(variant.Value)
		if name == "" {
			continue
		}
		pairs = append(pairs, keyEscaper.Replace(name)+"="+keyEscaper.Replace(value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ";")
}

// Clone returns an independent copy so frozen snapshots never alias cart data.
func (v Variants) Clone() Variants {
	if v == nil {
		return nil
	}
	out := make(Variants, len(v))
	copy(out, v)
	return out
}
