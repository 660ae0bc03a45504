// SPDX-License-Identifier: MPL-2.0

// Package subst implements the placeholder substitution engine used by
// command templates and set_env values. Substitution is textual token
// replacement against a layered lookup context; templates stay inert data
// and resolution never has side effects.
//
// Placeholder syntax:
//
//	{name}             built-in or user-defined variable
//	{env:NAME}         allow-listed process environment variable
//	{env:NAME:fallback} same, with a fallback when NAME is unset
//	{posargs}          positional CLI arguments, space-joined
//	{posargs:fallback} same, with a fallback when no arguments were given
//	{{ and }}          literal braces
package subst

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrSubstitution is the sentinel error wrapped by SubstitutionError.
var ErrSubstitution = errors.New("substitution failed")

type (
	// ErrorKind classifies substitution failures.
	ErrorKind string

	// SubstitutionError reports a failure to resolve a template.
	SubstitutionError struct {
		// Kind identifies the failure class.
		Kind ErrorKind
		// Name is the unresolvable reference, for UndefinedVariable.
		Name string
		// Template is the template being resolved.
		Template string
	}

	// Context is the layered lookup consulted during resolution.
	// Builtins always win over Vars so user templates cannot shadow
	// resolved paths.
	Context struct {
		// Builtins holds invocation-level values: the configuration
		// directory, the current environment's directories and name.
		Builtins map[string]string
		// Vars holds resolved environment-specific variable definitions.
		Vars map[string]string
		// Posargs are the positional CLI arguments.
		Posargs []string
		// LookupEnv resolves {env:NAME} references. A nil function
		// makes every such reference undefined. Implementations apply
		// the pass-through allowlist.
		LookupEnv func(name string) (string, bool)
	}
)

// Substitution failure classes.
const (
	// UndefinedVariable reports a reference that no context layer resolves.
	UndefinedVariable ErrorKind = "undefined variable"
	// BadPlaceholder reports an unterminated or empty placeholder.
	BadPlaceholder ErrorKind = "bad placeholder"
)

// Error implements the error interface.
func (e *SubstitutionError) Error() string {
	if e.Kind == UndefinedVariable {
		return fmt.Sprintf("%s %q in template %q", e.Kind, e.Name, e.Template)
	}
	return fmt.Sprintf("%s in template %q", e.Kind, e.Template)
}

// Unwrap returns ErrSubstitution for errors.Is detection.
func (e *SubstitutionError) Unwrap() error { return ErrSubstitution }

// Resolve substitutes every placeholder in template against ctx.
// Inputs containing no placeholders pass through unchanged.
func Resolve(template string, ctx *Context) (string, error) {
	var out strings.Builder
	out.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			out.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			out.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", &SubstitutionError{Kind: BadPlaceholder, Template: template}
			}
			ref := template[i+1 : i+end]
			value, err := resolveRef(ref, template, ctx)
			if err != nil {
				return "", err
			}
			out.WriteString(value)
			i += end + 1
		default:
			out.WriteByte(c)
			i++
		}
	}

	return out.String(), nil
}

// resolveRef resolves a single placeholder body.
func resolveRef(ref, template string, ctx *Context) (string, error) {
	if ref == "" {
		return "", &SubstitutionError{Kind: BadPlaceholder, Template: template}
	}

	name, fallback, hasFallback := splitRef(ref)

	switch {
	case name == "posargs":
		if len(ctx.Posargs) > 0 {
			return strings.Join(ctx.Posargs, " "), nil
		}
		if hasFallback {
			return fallback, nil
		}
		return "", nil
	case strings.HasPrefix(name, "env:"):
		envName := strings.TrimPrefix(name, "env:")
		if envName == "" {
			return "", &SubstitutionError{Kind: BadPlaceholder, Template: template}
		}
		if ctx.LookupEnv != nil {
			if value, ok := ctx.LookupEnv(envName); ok {
				return value, nil
			}
		}
		if hasFallback {
			return fallback, nil
		}
		return "", &SubstitutionError{Kind: UndefinedVariable, Name: "env:" + envName, Template: template}
	default:
		if value, ok := ctx.Builtins[name]; ok {
			return value, nil
		}
		if value, ok := ctx.Vars[name]; ok {
			return value, nil
		}
		if hasFallback {
			return fallback, nil
		}
		return "", &SubstitutionError{Kind: UndefinedVariable, Name: name, Template: template}
	}
}

// splitRef splits "name:fallback" at the last colon not belonging to the
// env: prefix. Returns hasFallback=false when no fallback is present.
func splitRef(ref string) (name, fallback string, hasFallback bool) {
	body := ref
	prefix := ""
	if strings.HasPrefix(ref, "env:") {
		prefix = "env:"
		body = strings.TrimPrefix(ref, "env:")
	}
	if i := strings.IndexByte(body, ':'); i >= 0 {
		return prefix + body[:i], body[i+1:], true
	}
	return ref, "", false
}

// ResolveVars resolves a set_env definition map against ctx. Keys resolve
// in sorted order and each resolved value becomes visible to the keys that
// follow it; forward references fail as undefined.
func ResolveVars(defs map[string]string, ctx *Context) (map[string]string, error) {
	resolved := make(map[string]string, len(defs))

	scoped := &Context{
		Builtins:  ctx.Builtins,
		Vars:      resolved,
		Posargs:   ctx.Posargs,
		LookupEnv: ctx.LookupEnv,
	}

	for _, k := range slices.Sorted(maps.Keys(defs)) {
		value, err := Resolve(defs[k], scoped)
		if err != nil {
			return nil, err
		}
		resolved[k] = value
	}

	return resolved, nil
}
