// Package langparse implements the recursive value grammar shared by request
// bodies and snapshot bodies: JSON objects and arrays, composite strings with
// {{var}} interpolation, source-preserving numbers, and (in snapshot mode)
// comparison markers and capture bindings.
package langparse

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var valueLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Arrow", Pattern: `->`},
	{Name: "Dots", Pattern: `\.\.\.`},
	{Name: "Keyword", Pattern: `\b(true|false|null|guid|timestamp)\b`},
	{Name: "Exponent", Pattern: `-?\d+\.\d+[eE][+-]?\d+`},
	{Name: "Fraction", Pattern: `-?\d+\.\d+`},
	{Name: "Int", Pattern: `-?\d+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[{}\[\]():,@]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// RootAST is the entry point: one Element, optionally surrounded by
// whitespace (elided by the lexer).
type RootAST struct {
	Element *ElementAST `parser:"@@"`
}

type ElementAST struct {
	Value     *ValueAST `parser:"@@"`
	CaptureAs *string   `parser:"( Arrow \"@\" @Ident )?"`
}

type ValueAST struct {
	Marker *MarkerAST `parser:"  @@"`
	VarRef *string    `parser:"| \"{\" \"{\" @Ident \"}\" \"}\""`
	Object *ObjectAST `parser:"| @@"`
	Array  *ArrayAST  `parser:"| @@"`
	Str    *string    `parser:"| @String"`
	Exp    *string    `parser:"| @Exponent"`
	Frac   *string    `parser:"| @Fraction"`
	Int    *string    `parser:"| @Int"`
	True   bool       `parser:"| @\"true\""`
	False  bool       `parser:"| @\"false\""`
	Null   bool       `parser:"| @\"null\""`
}

// MarkerAST covers the three snapshot-mode comparison markers. Bare forms
// ({{_:_}}, {{_:guid}}, {{_:timestamp("p")}}) omit the concrete value;
// annotated forms carry the concrete value the detector captured.
type MarkerAST struct {
	Ignore    *IgnoreMarkerAST    `parser:"  @@"`
	Timestamp *TimestampMarkerAST `parser:"| @@"`
	Guid      *GuidMarkerAST      `parser:"| @@"`
}

type IgnoreMarkerAST struct {
	Present bool `parser:"@( \"{\" \"{\" \"_\" \":\" \"_\" \"}\" \"}\" )"`
}

type GuidMarkerAST struct {
	Value *SimpleValueAST `parser:"\"{\" \"{\" \"_\" \":\" \"guid\" ( \":\" @@ )? \"}\" \"}\""`
}

type TimestampMarkerAST struct {
	Pattern string          `parser:"\"{\" \"{\" \"_\" \":\" \"timestamp\" \"(\" @String \")\""`
	Value   *SimpleValueAST `parser:"( \":\" @@ )? \"}\" \"}\""`
}

// SimpleValueAST is the restricted value grammar allowed as a marker's
// concrete payload: a string or a number, never an object/array/bool/null.
type SimpleValueAST struct {
	Str  *string `parser:"  @String"`
	Exp  *string `parser:"| @Exponent"`
	Frac *string `parser:"| @Fraction"`
	Int  *string `parser:"| @Int"`
}

type ObjectAST struct {
	Members []*MemberAST `parser:"\"{\" ( @@ ( \",\" @@ )* )? \"}\""`
}

type MemberAST struct {
	Key     string      `parser:"@String \":\""`
	Element *ElementAST `parser:"@@"`
}

// ArrayAST dispatches on the presence and placement of "..." markers:
// [a,b] literal, [a,b,...] starts-with, [...,a,...] contains, [...,a] ends-with.
type ArrayAST struct {
	Empty      bool           `parser:"  @( \"[\" \"]\" )"`
	Contains   *ArrayElemsAST `parser:"| \"[\" Dots \",\" @@ \",\" Dots \"]\""`
	EndsWith   *ArrayElemsAST `parser:"| \"[\" Dots \",\" @@ \"]\""`
	StartsWith *ArrayElemsAST `parser:"| \"[\" @@ \",\" Dots \"]\""`
	Literal    *ArrayElemsAST `parser:"| \"[\" @@ \"]\""`
}

type ArrayElemsAST struct {
	Elements []*ElementAST `parser:"@@ ( \",\" @@ )*"`
}

var valueParser = participle.MustBuild[RootAST](
	participle.Lexer(valueLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)
