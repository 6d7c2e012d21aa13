package scenario

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	wholeVar  = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)$`)
	inlineVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	varName   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func validVarName(name string) bool {
	return varName.MatchString(name)
}

// Vars holds values saved by earlier steps.
type Vars map[string]interface{}

// Substitute returns a copy of v with variables replaced. A string that is
// exactly "$name" takes the saved value with its type; "${name}" inside a
// longer string is replaced by the value's text form.
func (vars Vars) Substitute(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case string:
		if m := wholeVar.FindStringSubmatch(val); m != nil {
			saved, ok := vars[m[1]]
			if !ok {
				return nil, fmt.Errorf("undefined variable %q", m[1])
			}
			return saved, nil
		}
		var missing string
		out := inlineVar.ReplaceAllStringFunc(val, func(ref string) string {
			name := inlineVar.FindStringSubmatch(ref)[1]
			saved, ok := vars[name]
			if !ok {
				missing = name
				return ref
			}
			return fmt.Sprint(saved)
		})
		if missing != "" {
			return nil, fmt.Errorf("undefined variable %q", missing)
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			sub, err := vars.Substitute(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = sub
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			sub, err := vars.Substitute(item)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	default:
		return v, nil
	}
}

// referencedVars lists the variable names used anywhere in v.
func referencedVars(v interface{}) []string {
	var names []string
	var walk func(interface{})
	walk = func(v interface{}) {
		switch val := v.(type) {
		case string:
			if m := wholeVar.FindStringSubmatch(val); m != nil {
				names = append(names, m[1])
				return
			}
			for _, m := range inlineVar.FindAllStringSubmatch(val, -1) {
				names = append(names, m[1])
			}
		case map[string]interface{}:
			for _, item := range val {
				walk(item)
			}
		case []interface{}:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(v)
	return names
}

// placeholders returns vars where every referenced but unknown name maps to
// "<name>", for previews that run before earlier steps have produced values.
func (vars Vars) placeholders(v interface{}) Vars {
	out := make(Vars, len(vars))
	for k, val := range vars {
		out[k] = val
	}
	for _, name := range referencedVars(v) {
		if _, ok := out[name]; !ok {
			out[name] = "<" + strings.ToLower(name) + ">"
		}
	}
	return out
}
