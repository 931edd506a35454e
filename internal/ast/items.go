// Package ast holds the generated-item representation that crosses the
// insertion boundary. The surface AST lives in the frontend; the engine
// only ever sees whole items produced by comptime evaluation, either as
// pre-built structures or as raw source text still to be parsed.
package ast

import (
	"encoding/gob"

	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/mir"
	"github.com/lumelang/lume/internal/typesystem"
)

func init() {
	gob.Register(&FuncItem{})
	gob.Register(&StructItem{})
	gob.Register(&EnumItem{})
	gob.Register(&RawItem{})
}

// Item is one top-level declaration produced by an insertion.
type Item interface {
	// ItemName is the declared name, empty for raw text not yet parsed.
	ItemName() string
	itemNode()
}

// FuncItem is a generated function with its body already lowered. The
// frontend's incremental pass assigns the final FuncID at commit time when
// Func.ID is zero.
type FuncItem struct {
	Func *mir.Function

	// Sites are comptime call sites inside the generated body, discovered
	// by the frontend during the incremental pass. IDs are rewritten by
	// the driver on commit.
	Sites []mir.CallSite
}

// StructItem is a generated struct declaration.
type StructItem struct {
	Def *typesystem.StructDef
}

// EnumItem is a generated enum declaration.
type EnumItem struct {
	Def *typesystem.EnumDef
}

// RawItem is unparsed source text. The insertion pipeline hands it to the
// frontend parser before commit.
type RawItem struct {
	Source string

	// Origin is the #insert call site the text came from; parse errors
	// inside the text are attributed back to it.
	Origin diagnostics.Span
}

func (i *FuncItem) ItemName() string {
	if i.Func == nil {
		return ""
	}
	return i.Func.Name
}

func (i *StructItem) ItemName() string {
	if i.Def == nil {
		return ""
	}
	return i.Def.Name
}

func (i *EnumItem) ItemName() string {
	if i.Def == nil {
		return ""
	}
	return i.Def.Name
}

func (i *RawItem) ItemName() string { return "" }

func (*FuncItem) itemNode()   {}
func (*StructItem) itemNode() {}
func (*EnumItem) itemNode()   {}
func (*RawItem) itemNode()    {}
