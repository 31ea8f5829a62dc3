package autocomplete

import "strings"

// sqlScope is what a light scan of a statement reveals: the tables named
// in the outer FROM and JOIN clauses, alias mappings, and the projected
// columns of each CTE.
type sqlScope struct {
	tables   []string
	aliases  map[string]string
	cteOrder []string
	cteCols  map[string][]string
}

func scanQuery(query string) *sqlScope {
	s := &sqlScope{
		aliases: map[string]string{},
		cteCols: map[string][]string{},
	}
	toks := lex(query)
	s.scanCTEs(toks)
	s.scanTables(toks)
	return s
}

func (s *sqlScope) cteNamed(name string) ([]string, bool) {
	for _, cte := range s.cteOrder {
		if fold(cte) == fold(name) {
			return s.cteCols[cte], true
		}
	}
	return nil, false
}

// resolveAlias maps an alias back to its table, or returns the name
// unchanged when it is not an alias.
func (s *sqlScope) resolveAlias(name string) string {
	if t, ok := s.aliases[name]; ok {
		return t
	}
	for alias, t := range s.aliases {
		if fold(alias) == fold(name) {
			return t
		}
	}
	return name
}

// token is one lexed unit. depth is the parenthesis nesting level, with
// the parentheses themselves carrying the depth outside the group.
type token struct {
	text  string
	word  bool
	depth int
}

// lex splits SQL into word and punctuation tokens, skipping whitespace,
// comments, and string literals. Quoted identifiers become plain words.
func lex(query string) []token {
	var toks []token
	depth := 0
	i, n := 0, len(query)
	for i < n {
		c := query[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < n && query[i+1] == '-':
			for i < n && query[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && query[i+1] == '*':
			i += 2
			for i+1 < n && !(query[i] == '*' && query[i+1] == '/') {
				i++
			}
			i += 2
		case c == '\'':
			i++
			for i < n {
				if query[i] == '\'' {
					if i+1 < n && query[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		case c == '"':
			j := i + 1
			for j < n && query[j] != '"' {
				j++
			}
			toks = append(toks, token{text: query[i+1 : j], word: true, depth: depth})
			if j < n {
				j++
			}
			i = j
		case c == '(':
			toks = append(toks, token{text: "(", depth: depth})
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			toks = append(toks, token{text: ")", depth: depth})
			i++
		case isWordByte(c):
			j := i
			for j < n && isWordByte(query[j]) {
				j++
			}
			toks = append(toks, token{text: query[i:j], word: true, depth: depth})
			i = j
		default:
			toks = append(toks, token{text: string(c), depth: depth})
			i++
		}
	}
	return toks
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

// skipGroup returns the index just past the parenthesis group opening at
// open. Unbalanced input runs to the end of the token stream.
func skipGroup(toks []token, open int) int {
	d := toks[open].depth
	for k := open + 1; k < len(toks); k++ {
		if toks[k].text == ")" && !toks[k].word && toks[k].depth == d {
			return k + 1
		}
	}
	return len(toks)
}

// scanCTEs reads the top-level WITH chain and records each CTE's name and
// projected columns.
func (s *sqlScope) scanCTEs(toks []token) {
	i := 0
	for ; i < len(toks); i++ {
		if toks[i].word && toks[i].depth == 0 && strings.EqualFold(toks[i].text, "with") {
			break
		}
	}
	if i == len(toks) {
		return
	}
	i++
	if i < len(toks) && toks[i].word && strings.EqualFold(toks[i].text, "recursive") {
		i++
	}

	for i < len(toks) {
		if !toks[i].word {
			return
		}
		name := toks[i].text
		i++

		// Optional declared column list between the name and AS.
		if i < len(toks) && toks[i].text == "(" && !toks[i].word {
			j := skipGroup(toks, i)
			if j < len(toks) && toks[j].word && strings.EqualFold(toks[j].text, "as") {
				i = j
			}
		}

		if i >= len(toks) || !toks[i].word || !strings.EqualFold(toks[i].text, "as") {
			return
		}
		i++
		if i >= len(toks) || toks[i].text != "(" || toks[i].word {
			return
		}
		end := skipGroup(toks, i)
		bodyEnd := end - 1
		if bodyEnd < i+1 {
			bodyEnd = i + 1
		}
		s.cteOrder = append(s.cteOrder, name)
		s.cteCols[name] = projection(toks[i+1 : bodyEnd])

		i = end
		if i < len(toks) && toks[i].text == "," && !toks[i].word {
			i++
			continue
		}
		return
	}
}

// projection extracts column names from a SELECT body: explicit aliases,
// bare column references, and the star. Unaliased expressions are
// skipped.
func projection(body []token) []string {
	if len(body) == 0 || !body[0].word || !strings.EqualFold(body[0].text, "select") {
		return nil
	}
	base := body[0].depth
	rest := body[1:]

	if len(rest) > 0 && rest[0].word {
		switch strings.ToLower(rest[0].text) {
		case "distinct", "all":
			rest = rest[1:]
			if len(rest) > 1 && rest[0].word && strings.EqualFold(rest[0].text, "on") && rest[1].text == "(" {
				rest = rest[skipGroup(rest, 1):]
			}
		}
	}

	var cols []string
	start := 0
	flush := func(end int) {
		if name, ok := exprName(rest[start:end], base); ok {
			cols = append(cols, name)
		}
	}
	for k := 0; k < len(rest); k++ {
		t := rest[k]
		if t.depth != base {
			continue
		}
		if t.word {
			switch strings.ToLower(t.text) {
			case "from", "where", "group", "order", "having", "limit", "union":
				flush(k)
				return cols
			}
		}
		if t.text == "," && !t.word {
			flush(k)
			start = k + 1
		}
	}
	flush(len(rest))
	return cols
}

func exprName(expr []token, base int) (string, bool) {
	if len(expr) == 0 {
		return "", false
	}

	aliasIdx := -1
	for k := 0; k+1 < len(expr); k++ {
		if expr[k].depth == base && expr[k].word && strings.EqualFold(expr[k].text, "as") && expr[k+1].word {
			aliasIdx = k + 1
		}
	}
	if aliasIdx >= 0 {
		return expr[aliasIdx].text, true
	}

	if len(expr) == 1 && !expr[0].word && expr[0].text == "*" {
		return "*", true
	}

	if isDottedChain(expr) {
		// A bare chain of words is a column reference unless it is a
		// numeric literal.
		if name := expr[len(expr)-1].text; !startsWithDigit(name) {
			return name, true
		}
		return "", false
	}

	// Trailing alias after a call or parenthesized expression.
	if len(expr) >= 2 && expr[len(expr)-1].word && expr[len(expr)-2].text == ")" {
		return expr[len(expr)-1].text, true
	}

	return "", false
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func isDottedChain(expr []token) bool {
	if len(expr) == 0 || len(expr)%2 == 0 {
		return false
	}
	for i, t := range expr {
		if i%2 == 0 {
			if !t.word {
				return false
			}
		} else if t.word || t.text != "." {
			return false
		}
	}
	return true
}

// scanTables records tables named after FROM and JOIN. Only depth-zero
// clauses contribute to the outer scope; aliases are collected at every
// depth.
func (s *sqlScope) scanTables(toks []token) {
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if !t.word {
			continue
		}
		switch strings.ToLower(t.text) {
		case "from":
			i = s.scanTableList(toks, i+1, t.depth, t.depth == 0)
		case "join":
			i = s.scanTableRef(toks, i+1, t.depth, t.depth == 0)
		}
	}
}

func (s *sqlScope) scanTableList(toks []token, i, depth int, addScope bool) int {
	for {
		i = s.scanTableRef(toks, i, depth, addScope) + 1
		if i < len(toks) && toks[i].text == "," && !toks[i].word && toks[i].depth == depth {
			i++
			continue
		}
		return i - 1
	}
}

func (s *sqlScope) scanTableRef(toks []token, i, depth int, addScope bool) int {
	if i >= len(toks) || !toks[i].word || toks[i].depth != depth || clauseKeyword(strings.ToLower(toks[i].text)) {
		return i - 1
	}

	last := toks[i].text
	j := i + 1
	for j+1 < len(toks) && toks[j].text == "." && !toks[j].word && toks[j+1].word {
		last = toks[j+1].text
		j += 2
	}

	// A call like generate_series(...) is not a plain table reference.
	if j < len(toks) && toks[j].text == "(" && !toks[j].word {
		return j - 1
	}

	alias := ""
	if j < len(toks) && toks[j].word && toks[j].depth == depth {
		w := strings.ToLower(toks[j].text)
		switch {
		case w == "as":
			if j+1 < len(toks) && toks[j+1].word {
				alias = toks[j+1].text
				j += 2
			} else {
				j++
			}
		case !clauseKeyword(w):
			alias = toks[j].text
			j++
		}
	}

	if alias != "" {
		s.aliases[alias] = last
	}
	if addScope {
		s.tables = append(s.tables, last)
	}
	return j - 1
}

var clauseKeywords = map[string]bool{
	"as": true, "on": true, "where": true, "group": true, "order": true,
	"having": true, "limit": true, "offset": true, "join": true,
	"left": true, "right": true, "inner": true, "outer": true,
	"cross": true, "full": true, "union": true, "except": true,
	"intersect": true, "set": true, "values": true, "returning": true,
	"with": true, "using": true, "natural": true, "window": true,
	"fetch": true, "for": true, "select": true, "from": true,
}

func clauseKeyword(w string) bool { return clauseKeywords[w] }
