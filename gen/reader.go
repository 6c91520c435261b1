package gen

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-inherit/schema"
)

var (
	// ErrNoRecords is returned when nothing in the input is selected.
	ErrNoRecords = errors.New("gen: no records selected")
	// ErrTypeNotFound is returned when a type named by WithTypes is missing.
	ErrTypeNotFound = errors.New("gen: type not found")
	// ErrMixedPackages is returned when a directory holds several packages.
	ErrMixedPackages = errors.New("gen: multiple packages in directory")
	// ErrMethodConflict is returned when a record already declares Default or Merge.
	ErrMethodConflict = errors.New("gen: record already declares method")
	// ErrUnresolvedReference is returned when a default expression selects
	// from a name that is neither an import nor a package-level declaration.
	ErrUnresolvedReference = errors.New("gen: default refers to an unknown package")
)

// Record is a schema record plus the imports of the file declaring it.
type Record struct {
	schema.Record
	// Imports maps local package names to import paths.
	Imports map[string]string
}

// Package holds the records selected from one Go package.
type Package struct {
	Name    string
	Dir     string
	Records []Record
	// Declared holds the package-level identifiers of the parsed files.
	Declared map[string]bool
}

// ParseFile reads records from a single file. src follows go/parser
// conventions: nil reads filename from disk. Default expressions may only
// select from the file's imports and its own declarations; use ParseDir
// when they refer to declarations in sibling files.
func ParseFile(filename string, src any, opts ...Option) (*Package, error) {
	cfg := newConfig(opts)
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("gen: parse %s: %w", filename, err)
	}
	return collect(cfg, filepath.Dir(filename), []*ast.File{file})
}

// ParseDir reads records from the non-test Go files in dir.
func ParseDir(dir string, opts ...Option) (*Package, error) {
	cfg := newConfig(opts)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("gen: read dir: %w", err)
	}
	fset := token.NewFileSet()
	var files []*ast.File
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if cfg.skipFiles != nil && cfg.skipFiles(name) {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("gen: parse %s: %w", name, err)
		}
		files = append(files, file)
	}
	return collect(cfg, dir, files)
}

func collect(cfg config, dir string, files []*ast.File) (*Package, error) {
	pkg := &Package{Dir: dir, Declared: packageDecls(files)}
	wanted := make(map[string]bool, len(cfg.types))
	for _, name := range cfg.types {
		wanted[name] = true
	}
	methods := declaredMethods(files)
	found := make(map[string]bool)

	for _, file := range files {
		if pkg.Name == "" {
			pkg.Name = file.Name.Name
		} else if pkg.Name != file.Name.Name {
			return nil, fmt.Errorf("%w: %s and %s", ErrMixedPackages, pkg.Name, file.Name.Name)
		}
		imports := fileImports(file)
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				name := ts.Name.Name
				selected := wanted[name]
				if len(wanted) == 0 {
					selected = hasDirective(ts.Doc, generateDirective) ||
						(len(gd.Specs) == 1 && hasDirective(gd.Doc, generateDirective))
				}
				if !selected {
					continue
				}
				found[name] = true
				for _, method := range []string{"Default", "Merge"} {
					if methods[name][method] {
						return nil, fmt.Errorf("%w: %s.%s", ErrMethodConflict, name, method)
					}
				}
				record, err := readRecord(ts, cfg.tagKey)
				if err != nil {
					return nil, err
				}
				pkg.Records = append(pkg.Records, Record{Record: record, Imports: imports})
			}
		}
	}

	var missing []string
	for name := range wanted {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, strings.Join(missing, ", "))
	}
	if len(pkg.Records) == 0 {
		return nil, ErrNoRecords
	}
	return pkg, nil
}

func readRecord(ts *ast.TypeSpec, tagKey string) (schema.Record, error) {
	record := schema.Record{Name: ts.Name.Name}
	if ts.TypeParams != nil {
		for _, param := range ts.TypeParams.List {
			for _, name := range param.Names {
				record.TypeParams = append(record.TypeParams, name.Name)
			}
		}
	}
	st, ok := ts.Type.(*ast.StructType)
	if !ok {
		return schema.Record{}, &schema.ShapeError{Record: record.Name, Index: -1, Err: schema.ErrNotRecord}
	}

	index := 0
	for _, f := range st.Fields.List {
		typeExpr := types.ExprString(f.Type)
		annotations, err := fieldAnnotations(f, tagKey)
		if err != nil {
			return schema.Record{}, &schema.PolicyError{
				Record: record.Name,
				Field:  fieldLabel(f, typeExpr),
				Err:    err,
			}
		}
		if len(f.Names) == 0 {
			record.Fields = append(record.Fields, schema.Field{
				Name:        typeExpr,
				Type:        typeExpr,
				Embedded:    true,
				Index:       index,
				Annotations: annotations,
			})
			index++
			continue
		}
		for _, name := range f.Names {
			record.Fields = append(record.Fields, schema.Field{
				Name:        name.Name,
				Type:        typeExpr,
				Index:       index,
				Annotations: annotations,
			})
			index++
		}
	}
	return record, nil
}

func fieldLabel(f *ast.Field, typeExpr string) string {
	if len(f.Names) == 0 {
		return typeExpr
	}
	return f.Names[0].Name
}

// fieldAnnotations merges struct tag annotations with //inherit: directives
// from the field's doc and line comments, in that order.
func fieldAnnotations(f *ast.Field, tagKey string) ([]schema.Annotation, error) {
	var out []schema.Annotation
	if f.Tag != nil {
		raw, err := strconv.Unquote(f.Tag.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrMalformedAnnotation, err)
		}
		if value, ok := reflect.StructTag(raw).Lookup(tagKey); ok {
			annotations, err := schema.ParseTag(value)
			if err != nil {
				return nil, err
			}
			out = append(out, annotations...)
		}
	}
	for _, group := range []*ast.CommentGroup{f.Doc, f.Comment} {
		if group == nil {
			continue
		}
		for _, comment := range group.List {
			if ann, ok := parseDirective(comment.Text); ok {
				out = append(out, ann)
			}
		}
	}
	return out, nil
}

// parseDirective reads //inherit:key, //inherit:key=value or
// //inherit:key value.
func parseDirective(text string) (schema.Annotation, bool) {
	if !strings.HasPrefix(text, directivePrefix) {
		return schema.Annotation{}, false
	}
	body := strings.TrimSpace(strings.TrimPrefix(text, directivePrefix))
	if body == "" {
		return schema.Annotation{}, false
	}
	cut := strings.IndexFunc(body, func(r rune) bool { return r == '=' || r == ' ' || r == '\t' })
	ann := schema.Annotation{Key: body, Raw: strings.TrimPrefix(text, "//")}
	if cut >= 0 {
		ann.Key = body[:cut]
		ann.Value = strings.TrimSpace(body[cut+1:])
		ann.HasValue = true
	}
	return ann, true
}

func hasDirective(group *ast.CommentGroup, name string) bool {
	if group == nil {
		return false
	}
	for _, comment := range group.List {
		if strings.TrimSpace(comment.Text) == directivePrefix+name {
			return true
		}
	}
	return false
}

func declaredMethods(files []*ast.File) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, file := range files {
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv == nil || len(fd.Recv.List) == 0 {
				continue
			}
			recv := receiverName(fd.Recv.List[0].Type)
			if recv == "" {
				continue
			}
			if out[recv] == nil {
				out[recv] = make(map[string]bool)
			}
			out[recv][fd.Name.Name] = true
		}
	}
	return out
}

func packageDecls(files []*ast.File) map[string]bool {
	out := make(map[string]bool)
	for _, file := range files {
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if d.Recv == nil {
					out[d.Name.Name] = true
				}
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					switch sp := spec.(type) {
					case *ast.TypeSpec:
						out[sp.Name.Name] = true
					case *ast.ValueSpec:
						for _, name := range sp.Names {
							out[name.Name] = true
						}
					}
				}
			}
		}
	}
	return out
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}

func fileImports(file *ast.File) map[string]string {
	out := make(map[string]string, len(file.Imports))
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := guessPackageName(path)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		out[name] = path
	}
	return out
}

// guessPackageName derives a package name from its import path without
// loading the package. Imports whose package clause differs from the guess
// must be named explicitly for default expressions to use them.
func guessPackageName(path string) string {
	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]
	if len(parts) > 1 && isMajorVersion(name) {
		name = parts[len(parts)-2]
	}
	if strings.HasPrefix(path, "gopkg.in/") {
		name, _, _ = strings.Cut(name, ".")
	}
	name = strings.TrimPrefix(name, "go-")
	name = strings.TrimSuffix(name, "-go")
	return strings.ReplaceAll(name, "-", "")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}
