// Copyright 2026 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlparse is a conservative extractor for the tables an SQL
// entity's free-text query touches: it recognizes FROM, all JOIN
// variants, comma-lists, schema-qualified names, and CTE names to
// exclude. Two paths feed ExtractTables: github.com/ha1tch/tsqlparser,
// tried first for a precise AST-based extraction, and a hand-rolled
// tokenizer with a deliberately narrow grammar that takes over on any
// parse error.
package sqlparse

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ha1tch/tsqlparser"
	"github.com/ha1tch/tsqlparser/ast"
)

// ExtractTables returns the sorted, unique, unqualified table names a query
// references.
func ExtractTables(query string) []string {
	if tables, ok := tryTSQLParser(query); ok {
		return tables
	}
	return extractConservative(query)
}

// tryTSQLParser attempts the precise AST-based extraction. tsqlparser is a
// from-scratch recursive-descent parser operating on arbitrary input text;
// it is wrapped in a recover so a panic on a dialect construct it doesn't
// model (this engine also targets Postgres/SQLite/Access SQL, not just
// T-SQL) degrades to the conservative tokenizer rather than crashing the
// Dependency Graph Service.
func tryTSQLParser(query string) (result []string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			result, ok = nil, false
		}
	}()
	program, errs := tsqlparser.Parse(query)
	if len(errs) > 0 || program == nil {
		return nil, false
	}
	tables := extractFromProgram(program)
	if len(tables) == 0 {
		return nil, false
	}
	return tables, true
}

func extractFromProgram(program *ast.Program) []string {
	cte := map[string]bool{}
	out := map[string]bool{}

	var handleSelect func(*ast.SelectStatement)
	handleSelect = func(s *ast.SelectStatement) {
		if s == nil || s.From == nil {
			return
		}
		for _, tr := range s.From.Tables {
			walkTableRef(tr, cte, out)
		}
	}

	var handleStmt func(ast.Statement)
	handleStmt = func(st ast.Statement) {
		switch s := st.(type) {
		case *ast.SelectStatement:
			handleSelect(s)
		case *ast.WithStatement:
			for _, c := range s.CTEs {
				if c.Name != nil {
					cte[strings.ToLower(c.Name.Value)] = true
				}
			}
			for _, c := range s.CTEs {
				handleSelect(c.Query)
			}
			handleStmt(s.Query)
		}
	}

	for _, st := range program.Statements {
		handleStmt(st)
	}

	result := make([]string, 0, len(out))
	for name := range out {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func walkTableRef(tr ast.TableReference, cte map[string]bool, out map[string]bool) {
	switch t := tr.(type) {
	case *ast.TableName:
		if t.Name == nil {
			return
		}
		if name := lastSegment(t.Name.String(), cte); name != "" {
			out[name] = true
		}
	case *ast.JoinClause:
		walkTableRef(t.Left, cte, out)
		walkTableRef(t.Right, cte, out)
	}
}

func lastSegment(qualified string, cte map[string]bool) string {
	parts := strings.Split(qualified, ".")
	last := parts[len(parts)-1]
	if cte[strings.ToLower(last)] {
		return ""
	}
	return last
}

// The conservative tokenizer below never builds a full AST: it scans for
// FROM/JOIN keywords and reads the comma-separated (FROM) or single (JOIN)
// table reference that follows, skipping a trailing alias, and excludes
// any name also declared as a WITH ... AS ( CTE.

var (
	stringLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)
	cteDeclRe       = regexp.MustCompile(`(?i)\bWITH\s+([A-Za-z_][\w$]*)\s*(?:\([^)]*\))?\s+AS\s*\(`)
	cteContinueRe   = regexp.MustCompile(`(?i)^\s*,\s*([A-Za-z_][\w$]*)\s*(?:\([^)]*\))?\s+AS\s*\(`)
	tokenRe         = regexp.MustCompile(`(?i)[A-Za-z_][\w$]*(?:\.[A-Za-z_][\w$]*)*|[(),;]`)
)

var clauseKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "join": true, "inner": true,
	"left": true, "right": true, "full": true, "outer": true, "cross": true,
	"on": true, "group": true, "order": true, "by": true, "having": true,
	"union": true, "limit": true, "offset": true, "as": true, "with": true,
	"values": true, "set": true, "into": true, "using": true, "apply": true,
}

func extractConservative(query string) []string {
	clean := stringLiteralRe.ReplaceAllString(query, "''")

	cte := collectCTENames(clean)

	tokens := tokenRe.FindAllString(clean, -1)
	found := map[string]bool{}

	for i := 0; i < len(tokens); i++ {
		lower := strings.ToLower(tokens[i])
		if lower != "from" && !strings.HasSuffix(lower, "join") {
			continue
		}
		commaList := lower == "from"
		i++
		for i < len(tokens) {
			if isPunct(tokens[i]) && tokens[i] != "," {
				break
			}
			if tokens[i] == "," {
				if !commaList {
					break
				}
				i++
				continue
			}
			if clauseKeywords[strings.ToLower(tokens[i])] {
				break
			}
			name := lastSegment(tokens[i], cte)
			if name != "" {
				found[name] = true
			}
			i++
			// optional alias: "AS alias" or a bare trailing identifier that
			// isn't itself a clause keyword.
			if i < len(tokens) && strings.EqualFold(tokens[i], "as") {
				i += 2
				continue
			}
			if i < len(tokens) && !isPunct(tokens[i]) && !clauseKeywords[strings.ToLower(tokens[i])] {
				i++
			}
		}
		i--
	}

	result := make([]string, 0, len(found))
	for name := range found {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func collectCTENames(query string) map[string]bool {
	names := map[string]bool{}
	loc := cteDeclRe.FindStringSubmatchIndex(query)
	if loc == nil {
		return names
	}
	names[strings.ToLower(query[loc[2]:loc[3]])] = true
	rest := query[loc[1]:]
	depth := 1
	pos := 0
	for pos < len(rest) && depth > 0 {
		switch rest[pos] {
		case '(':
			depth++
		case ')':
			depth--
		}
		pos++
	}
	rest = rest[pos:]
	for {
		m := cteContinueRe.FindStringSubmatchIndex(rest)
		if m == nil {
			break
		}
		names[strings.ToLower(rest[m[2]:m[3]])] = true
		tail := rest[m[1]:]
		depth = 1
		pos = 0
		for pos < len(tail) && depth > 0 {
			switch tail[pos] {
			case '(':
				depth++
			case ')':
				depth--
			}
			pos++
		}
		rest = tail[pos:]
	}
	return names
}

func isPunct(tok string) bool {
	return tok == "(" || tok == ")" || tok == ";"
}
