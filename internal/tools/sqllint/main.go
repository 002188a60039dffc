// Command sqllint checks that every SQL string constant starts with a
// "--sql <uuid>" marker and that no marker is used twice. infra.SQLRunner
// refuses unmarked queries and logs by marker, so both mistakes only show up
// at runtime otherwise.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter|drop)\b`)
	markerPattern     = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

type query struct {
	file string
	name string
	line int
	text string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	violations, err := lint(targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
		os.Exit(1)
	}
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL marker problems")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		os.Exit(1)
	}
}

func lint(targets []string) ([]violation, error) {
	var queries []query
	for _, target := range targets {
		found, err := collect(target)
		if err != nil {
			return nil, err
		}
		queries = append(queries, found...)
	}

	var violations []violation
	seen := make(map[string]query)
	for _, q := range queries {
		match := markerPattern.FindStringSubmatch(firstLine(q.text))
		if match == nil {
			violations = append(violations, violation{file: q.file, line: q.line, name: q.name, message: "missing or invalid --sql <uuid> marker"})
			continue
		}
		if prev, dup := seen[match[1]]; dup {
			violations = append(violations, violation{
				file:    q.file,
				line:    q.line,
				name:    q.name,
				message: fmt.Sprintf("marker %s already used by %s", match[1], prev.name),
			})
			continue
		}
		seen[match[1]] = q
	}
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].file != violations[j].file {
			return violations[i].file < violations[j].file
		}
		return violations[i].line < violations[j].line
	})
	return violations, nil
}

func collect(target string) ([]query, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil, nil
		}
		return parseFile(target)
	}
	var out []query
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		found, err := parseFile(path)
		if err != nil {
			return err
		}
		out = append(out, found...)
		return nil
	})
	return out, err
}

// parseFile returns the string constants in path that look like SQL.
func parseFile(path string) ([]query, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return nil, err
	}
	var out []query
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, value := range vs.Values {
				lit, ok := value.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				text, err := unquote(lit.Value)
				if err != nil || !sqlKeywordPattern.MatchString(text) || !strings.Contains(text, "\n") {
					continue
				}
				name := ""
				if i < len(vs.Names) {
					name = vs.Names[i].Name
				}
				out = append(out, query{file: path, name: name, line: fset.Position(lit.Pos()).Line, text: text})
			}
		}
	}
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if v != "" && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
