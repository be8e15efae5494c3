// Command slotlint flags direct access to Slot's guarded fields
// (pid, logID, recOf, state, latch) from outside slot.go, where every
// access must go through the spinlock, an atomic helper or an accessor.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
)

var guardedFields = map[string]bool{
	"pid":   true,
	"logID": true,
	"recOf": true,
	"state": true,
	"latch": true,
}

func main() {
	dir := flag.String("dir", ".", "directory to analyze")
	flag.Parse()

	var issues []string
	err := filepath.Walk(*dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		if filepath.Base(path) == "slot.go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		issues = append(issues, checkFile(path)...)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "slotlint: %v\n", err)
		os.Exit(1)
	}

	for _, issue := range issues {
		fmt.Println(issue)
	}
	if len(issues) > 0 {
		os.Exit(1)
	}
}

func checkFile(filename string) []string {
	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
	if err != nil {
		return nil
	}

	var issues []string
	ast.Inspect(node, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		ident, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		if !guardedFields[sel.Sel.Name] {
			return true
		}
		// Slot methods name their receiver "s", so only selectors on an
		// identifier named "s" are checked. The check has no type
		// information: any other value named "s" with a field of one of
		// these names is reported too (SharedFlushState.state in
		// flush_state.go is). Accessor methods (s.PID(), s.Snapshot(),
		// ...) are never flagged, since their names are not in the set.
		if ident.Name != "s" {
			return true
		}
		pos := fset.Position(sel.Pos())
		issues = append(issues, fmt.Sprintf("%s:%d:%d: direct access to Slot.%s outside slot.go, use the exported accessor instead",
			filename, pos.Line, pos.Column, sel.Sel.Name))
		return true
	})
	return issues
}
