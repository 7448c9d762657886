package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

// query is a string constant that looks like SQL.
type query struct {
	file   string
	name   string
	line   int
	marker string
}

// linter collects SQL constants across files so markers can be checked for
// uniqueness after the walk.
type linter struct {
	queries    []query
	violations []violation
}

func (l *linter) walk(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" || d.Name() == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.file(path)
	})
}

func (l *linter) file(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			name := ""
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			q := query{file: path, name: name, line: fset.Position(bl.Pos()).Line, marker: firstLine(raw)}
			if !uuidMarkerPattern.MatchString(q.marker) {
				// Plain prose that happens to contain a keyword is only flagged
				// when it starts like a query.
				if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "--") && !sqlKeywordPattern.MatchString(q.marker) {
					continue
				}
				l.violations = append(l.violations, violation{file: q.file, line: q.line, name: q.name, message: "missing or invalid --sql <uuid> marker"})
				continue
			}
			l.queries = append(l.queries, q)
		}
		return true
	})
	return nil
}

// finish reports markers shared by more than one query and returns every
// violation sorted by position.
func (l *linter) finish() []violation {
	byMarker := make(map[string][]query)
	for _, q := range l.queries {
		byMarker[q.marker] = append(byMarker[q.marker], q)
	}
	for marker, qs := range byMarker {
		if len(qs) < 2 {
			continue
		}
		for _, q := range qs[1:] {
			l.violations = append(l.violations, violation{
				file:    q.file,
				line:    q.line,
				name:    q.name,
				message: "duplicate marker " + strings.TrimPrefix(marker, "--sql ") + " (first used by " + qs[0].name + ")",
			})
		}
	}
	sort.Slice(l.violations, func(i, j int) bool {
		a, b := l.violations[i], l.violations[j]
		if a.file != b.file {
			return a.file < b.file
		}
		return a.line < b.line
	})
	return l.violations
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
