package parser

import "strings"

// regexpSpace is the set \s matches in RE2
const regexpSpace = "\t\n\f\r "

// scanDialect deals with function-call markup the normalizer has not rewritten.
// Markup is held only while it can still grow into a call the normalizer converts;
// anything else passes through one '<' at a time like ordinary text.
func scanDialect(st *messageState, input string, out *strings.Builder) (handled, progressed bool) {
	rest := input[st.position:]

	var hold bool
	switch {
	case strings.HasPrefix(rest, functionCallsOpen):
		hold = wrappedCallPending(rest[len(functionCallsOpen):])
	case strings.HasPrefix(rest, functionTagOpen):
		hold = !opensWrappedBlock(input[:st.position]) && directCallPending(rest[len(functionTagOpen):])
	default:
		return false, false
	}
	if hold {
		return true, false
	}

	out.WriteByte('<')
	st.position++
	return true, true
}

// wrappedCallPending reports whether body, the text after <function_calls>, may
// still be converted: it opens with a write/edit function tag and the block has
// not closed yet
func wrappedCallPending(body string) bool {
	s := strings.TrimLeft(body, regexpSpace)
	s, ok := consumeLiteral(s, functionTagOpen)
	if !ok {
		return s == ""
	}
	if !fileWriteNamePending(s) {
		return false
	}
	return !strings.Contains(body, functionCallsClose)
}

// directCallPending reports whether s, the text after <function=, may still grow
// into a complete direct write/edit call
func directCallPending(s string) bool {
	if !fileWriteNamePending(s) {
		return false
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return true
	}
	pending, _ := directParamsProgress(s[end+1:])
	return pending
}

// opensWrappedBlock reports whether before ends with <function_calls> and optional
// whitespace. A function tag there belongs to the wrapped form, which the
// normalizer converts as a whole or not at all.
func opensWrappedBlock(before string) bool {
	return strings.HasSuffix(strings.TrimRight(before, regexpSpace), functionCallsOpen)
}

// fileWriteNamePending reports whether s starts with, or is a prefix of, a
// write/edit function name followed by '>'
func fileWriteNamePending(s string) bool {
	for _, name := range []string{"write>", "edit>"} {
		if strings.HasPrefix(s, name) || strings.HasPrefix(name, s) {
			return true
		}
	}
	return false
}

// directParamsProgress walks the parameters of a direct call the way
// reDirectFunctionCall matches them. pending means the text is a proper prefix
// of a match, complete means the content parameter has closed.
func directParamsProgress(body string) (pending, complete bool) {
	s := strings.TrimLeft(body, regexpSpace)
	s, ok := consumeLiteral(s, pathParamOpen)
	if !ok {
		return s == "", false
	}

	lt := strings.IndexByte(s, '<')
	if lt < 0 {
		return true, false
	}
	s, ok = consumeLiteral(s[lt:], parameterClose)
	if !ok {
		return s == "", false
	}

	s = strings.TrimLeft(s, regexpSpace)
	s, ok = consumeLiteral(s, contentParamOpen)
	if !ok {
		return s == "", false
	}

	if strings.Contains(s, parameterClose) {
		return false, true
	}
	return true, false
}

// consumeLiteral strips lit from the front of s. When s is too short to tell,
// it returns "" and false; when s cannot start with lit it returns s unchanged
// and false. Callers tell the two apart by checking for "".
func consumeLiteral(s, lit string) (string, bool) {
	if strings.HasPrefix(s, lit) {
		return s[len(lit):], true
	}
	if strings.HasPrefix(lit, s) {
		return "", false
	}
	return s, false
}
