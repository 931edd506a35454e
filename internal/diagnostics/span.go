package diagnostics

import "fmt"

// Span identifies a region of source text. Line and Col are 1-based;
// a zero Span (no file) means the location is unknown or synthetic.
type Span struct {
	File    string
	Line    int
	Col     int
	EndLine int
	EndCol  int
}

func NewSpan(file string, line, col int) Span {
	return Span{File: file, Line: line, Col: col, EndLine: line, EndCol: col}
}

// IsZero reports whether the span carries no location at all.
func (s Span) IsZero() bool {
	return s.File == "" && s.Line == 0 && s.Col == 0
}

func (s Span) String() string {
	if s.IsZero() {
		return "<generated>"
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}

// Before orders spans by (file, line, col). Used to sort diagnostics
// deterministically before emission.
func (s Span) Before(o Span) bool {
	if s.File != o.File {
		return s.File < o.File
	}
	if s.Line != o.Line {
		return s.Line < o.Line
	}
	return s.Col < o.Col
}
