package main

import (
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/weftlog/weft/weftnum"
)

var directiveRE = regexp.MustCompile(`^//weft:instrument(?:\s+(.*))?$`)
var argRE = regexp.MustCompile(`^(\w+)=("[^"]*"|\S+)$`)

// directive is the parsed configuration of one //weft:instrument
// comment.
type directive struct {
	level  weftnum.Level
	target string
	name   string
}

func parseDirective(text string, pkg string, funcName string) (*directive, error) {
	d := &directive{
		level:  weftnum.InfoLevel,
		target: pkg,
		name:   funcName,
	}
	seen := make(map[string]struct{})
	for _, arg := range strings.Fields(text) {
		m := argRE.FindStringSubmatch(arg)
		if m == nil {
			return nil, errors.Errorf("cannot parse instrument argument %q", arg)
		}
		key := m[1]
		value := strings.Trim(m[2], `"`)
		if _, dup := seen[key]; dup {
			return nil, errors.Errorf("expected only a single %q argument", key)
		}
		seen[key] = struct{}{}
		switch key {
		case "level":
			level, err := weftnum.LevelString(value)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid level %q", value)
			}
			d.level = level
		case "target":
			d.target = value
		case "name":
			d.name = value
		default:
			return nil, errors.Errorf("unknown instrument argument %q", key)
		}
	}
	return d, nil
}

// edit is a text insertion at a byte offset of the original source.
// All rewrites are pure insertions so offsets never shift relative to
// each other; they are applied back to front.
type edit struct {
	off    int
	insert string
}

type rewriter struct {
	fset      *token.FileSet
	file      *ast.File
	src       []byte
	edits     []edit
	decls     []string // package-level callsite vars, appended at the end
	needsBase bool     // some prologue captures parameters
}

func (r *rewriter) offset(pos token.Pos) int {
	return r.fset.File(r.file.Pos()).Offset(pos)
}

func (r *rewriter) insertAt(pos token.Pos, text string) {
	r.edits = append(r.edits, edit{off: r.offset(pos), insert: text})
}

// Rewrite transforms instrumented functions in src. Functions whose
// doc comment carries a //weft:instrument directive get a package
// level callsite declaration plus a span prologue; functions that
// return a deferred computation get their returns wrapped instead of
// being entered synchronously.
func Rewrite(filename string, src []byte) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", filename)
	}
	r := &rewriter{fset: fset, file: file, src: src}
	instrumented := 0
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Doc == nil {
			continue
		}
		var text string
		found := false
		for _, comment := range fn.Doc.List {
			if m := directiveRE.FindStringSubmatch(comment.Text); m != nil {
				text = m[1]
				found = true
				break
			}
		}
		if !found {
			continue
		}
		if fn.Body == nil {
			return nil, errors.Errorf("%s: cannot instrument %s: no body",
				fset.Position(fn.Pos()), fn.Name.Name)
		}
		d, err := parseDirective(text, file.Name.Name, fn.Name.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", fset.Position(fn.Pos()), fn.Name.Name)
		}
		if err := r.instrument(fn, d); err != nil {
			return nil, err
		}
		instrumented++
	}
	if instrumented == 0 {
		return src, nil
	}
	r.addImports()

	sort.SliceStable(r.edits, func(i, j int) bool { return r.edits[i].off > r.edits[j].off })
	out := string(src)
	for _, e := range r.edits {
		out = out[:e.off] + e.insert + out[e.off:]
	}
	out += "\n" + strings.Join(r.decls, "\n") + "\n"

	formatted, err := format.Source([]byte(out))
	if err != nil {
		return nil, errors.Wrapf(err, "gofmt %s", filename)
	}
	return formatted, nil
}

// paramNames returns the capturable parameter names, in order.
func paramNames(fn *ast.FuncDecl) []string {
	var names []string
	if fn.Type.Params == nil {
		return names
	}
	for _, field := range fn.Type.Params.List {
		for _, ident := range field.Names {
			if ident.Name == "_" {
				continue
			}
			names = append(names, ident.Name)
		}
	}
	return names
}

// callsiteVar builds the package-level identifier for a function's
// callsite, including the receiver type for methods so names don't
// collide.
func callsiteVar(fn *ast.FuncDecl) string {
	name := fn.Name.Name
	if fn.Recv != nil && len(fn.Recv.List) == 1 {
		t := fn.Recv.List[0].Type
		if star, ok := t.(*ast.StarExpr); ok {
			t = star.X
		}
		if ident, ok := t.(*ast.Ident); ok {
			name = title(ident.Name) + title(name)
		}
	}
	return "weftCallsite" + title(name)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// suspendKind reports whether fn returns a single deferred computation
// and, if so, whether that computation returns an error.
func suspendKind(fn *ast.FuncDecl) (suspending bool, returnsErr bool) {
	results := fn.Type.Results
	if results == nil || len(results.List) != 1 || len(results.List[0].Names) > 1 {
		return false, false
	}
	ft, ok := results.List[0].Type.(*ast.FuncType)
	if !ok {
		return false, false
	}
	if ft.Params != nil && len(ft.Params.List) != 0 {
		return false, false
	}
	if ft.Results == nil || len(ft.Results.List) == 0 {
		return true, false
	}
	if len(ft.Results.List) != 1 {
		return false, false
	}
	ident, ok := ft.Results.List[0].Type.(*ast.Ident)
	if !ok || ident.Name != "error" {
		return false, false
	}
	return true, true
}

func (r *rewriter) instrument(fn *ast.FuncDecl, d *directive) error {
	params := paramNames(fn)
	csVar := callsiteVar(fn)

	var decl strings.Builder
	decl.WriteString("var " + csVar + " = weft.NewCallsite(weftat.SpanKind, ")
	decl.WriteString(strconv.Quote(d.name) + ", " + strconv.Quote(d.target))
	decl.WriteString(", weftnum." + title(strings.ToLower(d.level.String())) + "Level")
	for _, p := range params {
		decl.WriteString(", " + strconv.Quote(p))
	}
	decl.WriteString(")")
	r.decls = append(r.decls, decl.String())

	if len(params) > 0 {
		r.needsBase = true
	}
	var prologue strings.Builder
	prologue.WriteString("\nweftSpan := weft.NewSpan(" + csVar)
	for _, p := range params {
		prologue.WriteString(", weftbase.Debug(" + strconv.Quote(p) + ", " + p + ")")
	}
	prologue.WriteString(")\ndefer weftSpan.Close()\n")

	suspending, returnsErr := suspendKind(fn)
	if !suspending {
		prologue.WriteString("weftScope := weftSpan.Enter()\ndefer weftScope.Exit()\n")
		r.insertAt(fn.Body.Lbrace+1, prologue.String())
		return nil
	}
	r.insertAt(fn.Body.Lbrace+1, prologue.String())

	wrap := "weftSpan.Wrap("
	if returnsErr {
		wrap = "weftSpan.WrapErr("
	}
	var wrapErr error
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if wrapErr != nil {
			return false
		}
		switch node := n.(type) {
		case *ast.FuncLit:
			// returns inside a literal belong to the literal
			return false
		case *ast.ReturnStmt:
			if len(node.Results) == 0 {
				wrapErr = errors.Errorf("%s: %s: naked return cannot be wrapped, name the returned computation",
					r.fset.Position(node.Pos()), fn.Name.Name)
				return false
			}
			expr := node.Results[0]
			r.insertAt(expr.Pos(), wrap)
			r.insertAt(expr.End(), ")")
		}
		return true
	})
	return wrapErr
}

// addImports appends an import block with whatever the generated code
// needs that the source does not already import.
func (r *rewriter) addImports() {
	needed := []string{
		"github.com/weftlog/weft",
		"github.com/weftlog/weft/weftat",
		"github.com/weftlog/weft/weftnum",
	}
	if r.needsBase {
		needed = append(needed, "github.com/weftlog/weft/weftbase")
	}
	have := make(map[string]struct{})
	for _, imp := range r.file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err == nil {
			have[path] = struct{}{}
		}
	}
	var missing []string
	for _, path := range needed {
		if _, ok := have[path]; !ok {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		return
	}
	var block strings.Builder
	block.WriteString("\n\nimport (\n")
	for _, path := range missing {
		block.WriteString("\t" + strconv.Quote(path) + "\n")
	}
	block.WriteString(")")
	r.insertAt(r.file.Name.End(), block.String())
}
