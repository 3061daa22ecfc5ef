package registry

import (
	"fmt"
	"strconv"

	"github.com/bazelbuild/buildtools/build"
)

const moduleBazelFile = "MODULE.bazel"

// GenerateModuleBazel renders a MODULE.bazel declaring m and its deps.
func GenerateModuleBazel(m *Module) []byte {
	f := &build.File{Path: moduleBazelFile, Type: build.TypeModule}

	f.Stmt = append(f.Stmt, &build.CallExpr{
		X: &build.Ident{Name: "module"},
		List: []build.Expr{
			stringAttr("name", m.Name),
			stringAttr("version", m.Version),
			&build.AssignExpr{
				LHS: &build.Ident{Name: "compatibility_level"},
				Op:  "=",
				RHS: &build.LiteralExpr{Token: strconv.Itoa(int(m.CompatibilityLevel))},
			},
		},
		ForceMultiLine: true,
	})

	for _, dep := range m.Deps {
		f.Stmt = append(f.Stmt, &build.CallExpr{
			X:    &build.Ident{Name: "bazel_dep"},
			List: []build.Expr{stringAttr("name", dep.Name), stringAttr("version", dep.Version)},
		})
	}

	return build.Format(f)
}

// ValidateModuleBazel parses data and checks that its module() call declares
// name, and version when the file sets one.
func ValidateModuleBazel(data []byte, name, version string) error {
	f, err := build.ParseModule(moduleBazelFile, data)
	if err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrInvalidModule, moduleBazelFile, err)
	}

	for _, stmt := range f.Stmt {
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			continue
		}
		ident, ok := call.X.(*build.Ident)
		if !ok || ident.Name != "module" {
			continue
		}

		if got := attrString(call, "name"); got != name {
			return fmt.Errorf("%w: %s declares module %q, want %q", ErrInvalidModule, moduleBazelFile, got, name)
		}
		if got := attrString(call, "version"); got != "" && got != version {
			return fmt.Errorf("%w: %s declares version %q, want %q", ErrInvalidModule, moduleBazelFile, got, version)
		}
		return nil
	}

	return fmt.Errorf("%w: %s has no module() call", ErrInvalidModule, moduleBazelFile)
}

func stringAttr(name, value string) *build.AssignExpr {
	return &build.AssignExpr{
		LHS: &build.Ident{Name: name},
		Op:  "=",
		RHS: &build.StringExpr{Value: value},
	}
}

func attrString(call *build.CallExpr, name string) string {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if lhs, ok := assign.LHS.(*build.Ident); ok && lhs.Name == name {
			if str, ok := assign.RHS.(*build.StringExpr); ok {
				return str.Value
			}
		}
	}
	return ""
}
