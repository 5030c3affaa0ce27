// Package linter содержит анализатор, запрещающий аварийное завершение
// программы вне функции main пакета main.
package linter

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "exitcheck",
	Doc:  "reports uses of builtin panic and log.Fatal/os.Exit outside main.main",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		pkgName := file.Name.Name
		for _, decl := range file.Decls {
			fDecl, ok := decl.(*ast.FuncDecl)
			if !ok || fDecl.Body == nil {
				ast.Inspect(decl, func(node ast.Node) bool {
					inspectCall(pass, node, pkgName, "")
					return true
				})
				continue
			}
			// Вызовы внутри функций проверяются с учётом имени функции:
			// main.main освобождён от запрета на log.Fatal и os.Exit.
			funcName := fDecl.Name.Name
			ast.Inspect(fDecl.Body, func(node ast.Node) bool {
				inspectCall(pass, node, pkgName, funcName)
				return true
			})
		}
	}
	return nil, nil
}

func inspectCall(pass *analysis.Pass, node ast.Node, pkgName, funcName string) {
	call, ok := node.(*ast.CallExpr)
	if !ok {
		return
	}

	// Встроенный panic запрещён всюду; переопределённый panic не трогаем.
	if id, ok := call.Fun.(*ast.Ident); ok {
		if id.Name == "panic" {
			if obj := pass.TypesInfo.Uses[id]; obj != nil && obj.Pkg() == nil {
				pass.Reportf(id.Pos(), "use of builtin panic is discouraged")
			}
		}
		return
	}

	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return
	}
	pkgObj, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
	if !ok {
		return
	}

	if pkgName == "main" && funcName == "main" {
		return
	}
	switch pkgObj.Imported().Path() {
	case "log":
		switch sel.Sel.Name {
		case "Fatal", "Fatalf", "Fatalln":
			pass.Reportf(sel.Sel.Pos(), "call to log.Fatal or os.Exit outside main.main")
		}
	case "os":
		if sel.Sel.Name == "Exit" {
			pass.Reportf(sel.Sel.Pos(), "call to log.Fatal or os.Exit outside main.main")
		}
	}
}
