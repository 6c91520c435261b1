package gen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-inherit/schema"
)

// Compile validates record and checks that every default expression parses
// as a Go expression.
func Compile(record schema.Record) (schema.Plan, error) {
	return schema.Compile(record, schema.WithDefaultValidator(func(field schema.PlannedField) error {
		_, err := parser.ParseExpr(field.Policy.Default)
		return err
	}))
}

// Synthesize returns the Default and Merge method declarations for plan.
// The output is not formatted; File formats the assembled source.
func Synthesize(plan schema.Plan) []byte {
	var buf bytes.Buffer
	name := plan.Name
	recv := receiverFor(name)

	fmt.Fprintf(&buf, "// Default returns the default %s, with every field default applied.\n", name)
	fmt.Fprintf(&buf, "func (%s) Default() %s {\n", name, name)
	fmt.Fprintf(&buf, "\tvar out %s\n", name)
	for _, field := range plan.Fields {
		if field.Policy.HasDefault {
			fmt.Fprintf(&buf, "\tout.%s = %s\n", field.Name, field.Policy.Default)
			continue
		}
		fmt.Fprintf(&buf, "\t%s.DefaultInto(&out.%s)\n", runtimeName, field.Name)
	}
	buf.WriteString("\treturn out\n}\n\n")

	fmt.Fprintf(&buf, "// Merge resolves %s over parent field by field.\n", recv)
	fmt.Fprintf(&buf, "func (%s %s) Merge(parent %s) %s {\n", recv, name, name, name)
	fmt.Fprintf(&buf, "\tvar out %s\n", name)
	for _, field := range plan.Fields {
		if field.Policy.SkipMerge {
			fmt.Fprintf(&buf, "\tout.%s = %s.Clone(%s.%s)\n", field.Name, runtimeName, recv, field.Name)
			continue
		}
		fmt.Fprintf(&buf, "\tout.%s = %s.MergeValue(%s.%s, parent.%s)\n", field.Name, runtimeName, recv, field.Name, field.Name)
	}
	buf.WriteString("\treturn out\n}\n")
	return buf.Bytes()
}

// File synthesizes every record of pkg and returns one formatted Go file.
// Records are synthesized concurrently; on any failure no output is
// returned and the errors of all failing records are joined in record order.
func File(ctx context.Context, pkg *Package, opts ...Option) ([]byte, error) {
	if pkg == nil || len(pkg.Records) == 0 {
		return nil, ErrNoRecords
	}
	cfg := newConfig(opts)

	bodies := make([][]byte, len(pkg.Records))
	errs := make([]error, len(pkg.Records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i := range pkg.Records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			started := time.Now()
			record := pkg.Records[i]
			plan, err := Compile(record.Record)
			cfg.logger.LogSynthesis(Event{
				Record:   record.Name,
				Fields:   len(record.Fields),
				Duration: time.Since(started),
				Err:      err,
			})
			if err != nil {
				errs[i] = err
				return nil
			}
			bodies[i] = Synthesize(plan)
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	imports, err := collectImports(pkg, cfg.runtimePath)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if cfg.header != "" {
		buf.WriteString(cfg.header)
		buf.WriteString("\n\n")
	}
	fmt.Fprintf(&buf, "package %s\n\n", pkg.Name)
	if len(imports) > 0 {
		buf.WriteString("import (\n")
		for i, imp := range imports {
			if i > 0 && isStdlib(imports[i-1].path) && !isStdlib(imp.path) {
				buf.WriteString("\n")
			}
			if imp.name != "" {
				fmt.Fprintf(&buf, "\t%s %s\n", imp.name, strconv.Quote(imp.path))
				continue
			}
			fmt.Fprintf(&buf, "\t%s\n", strconv.Quote(imp.path))
		}
		buf.WriteString(")\n\n")
	}
	for i, body := range bodies {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.Write(body)
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("gen: format output: %w", err)
	}
	return out, nil
}

type importSpec struct {
	name string
	path string
}

// collectImports returns every import the generated code refers to,
// standard library first, sorted by path. The runtime package is included
// when some record has fields. A default expression selecting from a name
// that is neither imported nor declared in the package fails with a
// PolicyError.
func collectImports(pkg *Package, runtimePath string) ([]importSpec, error) {
	byName := map[string]string{}
	for _, record := range pkg.Records {
		if len(record.Fields) > 0 {
			byName[runtimeName] = runtimePath
		}
		for _, field := range record.Fields {
			ann, ok := defaultAnnotation(field.Annotations)
			if !ok {
				continue
			}
			expr, err := parser.ParseExpr(ann.Value)
			if err != nil {
				continue
			}
			for _, pkgName := range referencedNames(expr) {
				path, ok := record.Imports[pkgName]
				if !ok {
					if pkg.Declared[pkgName] {
						continue
					}
					if pkgName != runtimeName {
						return nil, &schema.PolicyError{
							Record:     record.Name,
							Field:      field.Name,
							Annotation: ann.String(),
							Err:        fmt.Errorf("%w: %s is not imported under that name; give the import an explicit name", ErrUnresolvedReference, pkgName),
						}
					}
					path = runtimePath
				}
				if pkgName == runtimeName && path != runtimePath {
					return nil, fmt.Errorf("gen: record %s imports %s as %s, want %s", record.Name, path, runtimeName, runtimePath)
				}
				if existing, ok := byName[pkgName]; ok && existing != path {
					return nil, fmt.Errorf("gen: package name %s refers to both %s and %s", pkgName, existing, path)
				}
				byName[pkgName] = path
			}
		}
	}

	out := make([]importSpec, 0, len(byName))
	for name, path := range byName {
		spec := importSpec{path: path}
		if name != guessPackageName(path) || name == runtimeName {
			spec.name = name
		}
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool {
		if isStdlib(out[i].path) != isStdlib(out[j].path) {
			return isStdlib(out[i].path)
		}
		return out[i].path < out[j].path
	})
	return out, nil
}

func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}

func defaultAnnotation(annotations []schema.Annotation) (schema.Annotation, bool) {
	for _, ann := range annotations {
		if ann.Key == "default" && ann.HasValue {
			return ann, true
		}
	}
	return schema.Annotation{}, false
}

// referencedNames lists identifiers used as the left side of selector
// expressions, which is how package references appear.
func referencedNames(expr ast.Expr) []string {
	seen := map[string]bool{}
	var names []string
	ast.Inspect(expr, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if ident, ok := sel.X.(*ast.Ident); ok && !seen[ident.Name] {
			seen[ident.Name] = true
			names = append(names, ident.Name)
		}
		return true
	})
	return names
}

// receiverFor returns the lowercased first letter of the type name, or r
// when the name does not start with a letter.
func receiverFor(typeName string) string {
	for _, r := range typeName {
		if unicode.IsLetter(r) {
			return string(unicode.ToLower(r))
		}
		break
	}
	return "r"
}
