package exec

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/rlm-server/rlm/internal/search"
)

func arg(args []any, i int) any {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

func argString(args []any, i int) string {
	return toString(arg(args, i))
}

func argInt(args []any, i int, def int) int {
	f, ok := toFloat(arg(args, i))
	if !ok {
		return def
	}
	return int(f)
}

func argArray(args []any, i int) []any {
	if v, ok := arg(args, i).([]any); ok {
		return v
	}
	return nil
}

// registerHelpers builds the curated function table exposed to a script.
// Every helper returns a plain value and never panics for bad input; it
// falls back to a documented zero value instead, matching the isolation
// contract that a script's own mistakes never escape as a Go panic.
func registerHelpers(in *interpreter, host Host, out *outputBuffer, regexMaxMatches int) {
	h := in.helpers

	// I/O helpers.
	h["print"] = func(args []any) any {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = toString(a)
		}
		out.writeLine(strings.Join(parts, " "))
		return nil
	}
	h["logInfo"] = func(args []any) any {
		out.writeLine("[info] " + strings.Join(stringify(args), " "))
		return nil
	}
	h["logError"] = func(args []any) any {
		out.writeLine("[error] " + strings.Join(stringify(args), " "))
		return nil
	}

	// Context access (read-only).
	h["getContext"] = func(args []any) any {
		text, ok := host.GetContext(argString(args, 0))
		if !ok {
			return nil
		}
		return text
	}
	h["getContextMetadata"] = func(args []any) any {
		meta, ok := host.GetContextMetadata(argString(args, 0))
		if !ok {
			return nil
		}
		return meta
	}
	h["listContexts"] = func(args []any) any {
		ids := host.ListContexts()
		out := make([]any, len(ids))
		for i, id := range ids {
			out[i] = id
		}
		return out
	}

	// String helpers.
	h["len"] = func(args []any) any { return int64(valueLen(arg(args, 0))) }
	h["upper"] = func(args []any) any { return strings.ToUpper(argString(args, 0)) }
	h["lower"] = func(args []any) any { return strings.ToLower(argString(args, 0)) }
	h["trim"] = func(args []any) any { return strings.TrimSpace(argString(args, 0)) }
	h["split"] = func(args []any) any {
		parts := strings.Split(argString(args, 0), argString(args, 1))
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	}
	h["join"] = func(args []any) any {
		return strings.Join(stringify(argArray(args, 0)), argString(args, 1))
	}
	h["includes"] = func(args []any) any {
		return strings.Contains(argString(args, 0), argString(args, 1))
	}
	h["startsWith"] = func(args []any) any {
		return strings.HasPrefix(argString(args, 0), argString(args, 1))
	}
	h["endsWith"] = func(args []any) any {
		return strings.HasSuffix(argString(args, 0), argString(args, 1))
	}
	h["padLeft"] = func(args []any) any { return pad(argString(args, 0), argInt(args, 1, 0), argString2(args, 2, " "), true) }
	h["padRight"] = func(args []any) any {
		return pad(argString(args, 0), argInt(args, 1, 0), argString2(args, 2, " "), false)
	}
	h["substr"] = func(args []any) any {
		r := []rune(argString(args, 0))
		start, end := argInt(args, 1, 0), argInt(args, 2, len(r))
		if start < 0 {
			start = 0
		}
		if end > len(r) {
			end = len(r)
		}
		if start > end {
			start = end
		}
		return string(r[start:end])
	}
	h["range"] = func(args []any) any {
		n := argInt(args, 0, 0)
		const rangeCap = 1_000_000
		if n > rangeCap {
			n = rangeCap
		}
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, int64(i))
		}
		return out
	}

	registerCollectionHelpers(h)
	registerObjectHelpers(h)
	registerRegexHelpers(h, regexMaxMatches)
	registerStateHelpers(h, host)
	registerJSONHelpers(h)
	registerMathHelpers(h)
}

func argString2(args []any, i int, def string) string {
	if i >= len(args) {
		return def
	}
	return toString(args[i])
}

func valueLen(v any) int {
	switch t := v.(type) {
	case string:
		return len([]rune(t))
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return 0
	}
}

func stringify(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = toString(a)
	}
	return out
}

func pad(s string, width int, filler string, left bool) string {
	if filler == "" {
		filler = " "
	}
	need := width - len([]rune(s))
	if need <= 0 {
		return s
	}
	fill := strings.Repeat(filler, need)
	if len([]rune(fill)) > need {
		fill = string([]rune(fill)[:need])
	}
	if left {
		return fill + s
	}
	return s + fill
}

func registerCollectionHelpers(h map[string]func([]any) any) {
	h["map"] = func(args []any) any {
		arr, cl := argArray(args, 0), asClosure(arg(args, 1))
		if cl == nil {
			return arr
		}
		out := make([]any, len(arr))
		for i, v := range arr {
			out[i] = cl.call([]any{v, int64(i)})
		}
		return out
	}
	h["filter"] = func(args []any) any {
		arr, cl := argArray(args, 0), asClosure(arg(args, 1))
		if cl == nil {
			return arr
		}
		out := make([]any, 0, len(arr))
		for i, v := range arr {
			if truthy(cl.call([]any{v, int64(i)})) {
				out = append(out, v)
			}
		}
		return out
	}
	h["reduce"] = func(args []any) any {
		arr, cl := argArray(args, 0), asClosure(arg(args, 1))
		acc := arg(args, 2)
		if cl == nil {
			return acc
		}
		for i, v := range arr {
			acc = cl.call([]any{acc, v, int64(i)})
		}
		return acc
	}
	h["sort"] = func(args []any) any {
		arr := append([]any{}, argArray(args, 0)...)
		cl := asClosure(arg(args, 1))
		sort.SliceStable(arr, func(i, j int) bool {
			if cl != nil {
				return truthy(cl.call([]any{arr[i], arr[j]}))
			}
			cmp, ok := compareValues(arr[i], arr[j])
			return ok && cmp < 0
		})
		return arr
	}
	h["unique"] = func(args []any) any {
		arr := argArray(args, 0)
		seen := map[string]bool{}
		out := make([]any, 0, len(arr))
		for _, v := range arr {
			k := toString(v)
			if !seen[k] {
				seen[k] = true
				out = append(out, v)
			}
		}
		return out
	}
	h["flatten"] = func(args []any) any {
		arr := argArray(args, 0)
		out := make([]any, 0, len(arr))
		for _, v := range arr {
			if inner, ok := v.([]any); ok {
				out = append(out, inner...)
			} else {
				out = append(out, v)
			}
		}
		return out
	}
	h["chunk"] = func(args []any) any {
		arr := argArray(args, 0)
		size := argInt(args, 1, 1)
		if size <= 0 {
			size = 1
		}
		out := make([]any, 0, (len(arr)+size-1)/size)
		for i := 0; i < len(arr); i += size {
			end := i + size
			if end > len(arr) {
				end = len(arr)
			}
			part := make([]any, end-i)
			copy(part, arr[i:end])
			out = append(out, part)
		}
		return out
	}
	h["take"] = func(args []any) any {
		arr := argArray(args, 0)
		n := argInt(args, 1, 0)
		if n > len(arr) {
			n = len(arr)
		}
		if n < 0 {
			n = 0
		}
		out := make([]any, n)
		copy(out, arr[:n])
		return out
	}
	h["skip"] = func(args []any) any {
		arr := argArray(args, 0)
		n := argInt(args, 1, 0)
		if n > len(arr) {
			n = len(arr)
		}
		if n < 0 {
			n = 0
		}
		out := make([]any, len(arr)-n)
		copy(out, arr[n:])
		return out
	}
	h["groupBy"] = func(args []any) any {
		arr, cl := argArray(args, 0), asClosure(arg(args, 1))
		out := map[string]any{}
		for i, v := range arr {
			var key string
			if cl != nil {
				key = toString(cl.call([]any{v, int64(i)}))
			} else {
				key = toString(v)
			}
			group, _ := out[key].([]any)
			out[key] = append(group, v)
		}
		return out
	}
}

func asClosure(v any) *closure {
	cl, _ := v.(*closure)
	return cl
}

func registerObjectHelpers(h map[string]func([]any) any) {
	h["keys"] = func(args []any) any {
		m, _ := arg(args, 0).(map[string]any)
		out := make([]any, 0, len(m))
		for _, k := range sortedKeys(m) {
			out = append(out, k)
		}
		return out
	}
	h["values"] = func(args []any) any {
		m, _ := arg(args, 0).(map[string]any)
		out := make([]any, 0, len(m))
		for _, k := range sortedKeys(m) {
			out = append(out, m[k])
		}
		return out
	}
	h["entries"] = func(args []any) any {
		m, _ := arg(args, 0).(map[string]any)
		out := make([]any, 0, len(m))
		for _, k := range sortedKeys(m) {
			out = append(out, []any{k, m[k]})
		}
		return out
	}
	h["get"] = func(args []any) any {
		return indexValue(arg(args, 0), arg(args, 1))
	}
}

func registerRegexHelpers(h map[string]func([]any) any, maxMatches int) {
	if maxMatches <= 0 {
		maxMatches = 1000
	}
	h["search"] = func(args []any) any {
		matches, err := search.Regex(argString(args, 0), argString(args, 1), search.Options{MaxMatches: 1})
		if err != nil || len(matches) == 0 {
			return nil
		}
		return matchToValue(matches[0])
	}
	h["findAll"] = func(args []any) any {
		matches, err := search.Regex(argString(args, 0), argString(args, 1), search.Options{MaxMatches: maxMatches, Compact: true})
		if err != nil {
			return []any{}
		}
		out := make([]any, len(matches))
		for i, m := range matches {
			out[i] = matchToValue(m)
		}
		return out
	}
	h["replace"] = func(args []any) any {
		re, err := regexp.Compile(argString(args, 1))
		if err != nil {
			return argString(args, 0)
		}
		return re.ReplaceAllString(argString(args, 0), argString(args, 2))
	}
	h["test"] = func(args []any) any {
		re, err := regexp.Compile(argString(args, 1))
		if err != nil {
			return false
		}
		return re.MatchString(argString(args, 0))
	}
}

func matchToValue(m search.Match) map[string]any {
	groups := make([]any, len(m.Groups))
	for i, g := range m.Groups {
		groups[i] = g
	}
	return map[string]any{
		"line":   int64(m.Line),
		"offset": int64(m.Offset),
		"length": int64(m.Length),
		"text":   m.Text,
		"groups": groups,
	}
}

func registerStateHelpers(h map[string]func([]any) any, host Host) {
	h["setVar"] = func(args []any) any {
		return host.SetVariable(argString(args, 0), arg(args, 1))
	}
	h["getVar"] = func(args []any) any {
		v, _ := host.GetVariable(argString(args, 0))
		return v
	}
	h["listVars"] = func(args []any) any {
		vars := host.ListVariables()
		out := make(map[string]any, len(vars))
		for k, v := range vars {
			out[k] = v
		}
		return out
	}
	h["deleteVar"] = func(args []any) any {
		return host.DeleteVariable(argString(args, 0))
	}
	h["setAnswer"] = func(args []any) any {
		host.SetAnswer(argString(args, 0), truthy(arg(args, 1)))
		return nil
	}
	h["appendAnswer"] = func(args []any) any {
		host.AppendAnswer(argString(args, 0))
		return nil
	}
	h["getAnswer"] = func(args []any) any {
		content, ready := host.GetAnswer()
		return map[string]any{"content": content, "ready": ready}
	}
}

func registerJSONHelpers(h map[string]func([]any) any) {
	h["jsonParse"] = func(args []any) any {
		var v any
		if err := json.Unmarshal([]byte(argString(args, 0)), &v); err != nil {
			return nil
		}
		return normalizeJSON(v)
	}
	h["jsonStringify"] = func(args []any) any {
		b, err := json.Marshal(arg(args, 0))
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// normalizeJSON converts the float64/[]interface{}/map[string]interface{}
// tree encoding/json produces into this package's own value shapes (mostly
// already identical; whole-number floats stay float64 by design).
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeJSON(e)
		}
		return out
	default:
		return v
	}
}

func registerMathHelpers(h map[string]func([]any) any) {
	h["abs"] = func(args []any) any { f, _ := toFloat(arg(args, 0)); return math.Abs(f) }
	h["floor"] = func(args []any) any { f, _ := toFloat(arg(args, 0)); return math.Floor(f) }
	h["ceil"] = func(args []any) any { f, _ := toFloat(arg(args, 0)); return math.Ceil(f) }
	h["round"] = func(args []any) any { f, _ := toFloat(arg(args, 0)); return math.Round(f) }
	h["sqrt"] = func(args []any) any { f, _ := toFloat(arg(args, 0)); return math.Sqrt(f) }
	h["pow"] = func(args []any) any {
		base, _ := toFloat(arg(args, 0))
		exp, _ := toFloat(arg(args, 1))
		return math.Pow(base, exp)
	}
	h["min"] = func(args []any) any { return minMax(args, false) }
	h["max"] = func(args []any) any { return minMax(args, true) }
	h["sum"] = func(args []any) any {
		total := 0.0
		for _, v := range argArray(args, 0) {
			f, _ := toFloat(v)
			total += f
		}
		return total
	}
	h["avg"] = func(args []any) any {
		arr := argArray(args, 0)
		if len(arr) == 0 {
			return 0.0
		}
		total := 0.0
		for _, v := range arr {
			f, _ := toFloat(v)
			total += f
		}
		return total / float64(len(arr))
	}
}

func minMax(args []any, wantMax bool) any {
	if len(args) == 1 {
		if arr, ok := args[0].([]any); ok {
			args = arr
		}
	}
	if len(args) == 0 {
		return nil
	}
	best, _ := toFloat(args[0])
	for _, a := range args[1:] {
		f, ok := toFloat(a)
		if !ok {
			continue
		}
		if (wantMax && f > best) || (!wantMax && f < best) {
			best = f
		}
	}
	return best
}
