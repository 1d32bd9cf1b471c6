package saisine

import (
	"strings"
)

// Span markers wrapped around highlighted passages in the marked text
const (
	MarkStart = "[SURLIGNÉ]"
	MarkEnd   = "[/SURLIGNÉ]"
)

type spanState int

const (
	outsideSpan spanState = iota
	insideSpan
)

// spanBuilder accumulates the marked text. A span is buffered until a line
// break, an unhighlighted run or the end of input closes it.
type spanBuilder struct {
	out   strings.Builder
	span  strings.Builder
	state spanState
}

func (b *spanBuilder) open(text string) {
	b.state = insideSpan
	b.span.Reset()
	b.span.WriteString(text)
}

// close emits the buffered span, wrapped unless it is blank
func (b *spanBuilder) close() {
	buffered := b.span.String()
	if strings.TrimSpace(buffered) != "" {
		b.out.WriteString(MarkStart)
		b.out.WriteString(buffered)
		b.out.WriteString(MarkEnd)
	} else {
		b.out.WriteString(buffered)
	}
	b.span.Reset()
	b.state = outsideSpan
}

// BuildMarkedText renders the run sequence as text, wrapping every closed
// non-blank highlighted span in MarkStart/MarkEnd. All other text is emitted
// verbatim in its original order.
func BuildMarkedText(rs *RunSet) string {
	var b spanBuilder

	for i, r := range rs.Runs {
		highlighted := rs.Effective(i)

		switch {
		case r.IsLineBreak() && b.state == insideSpan:
			b.close()
			b.out.WriteString(r.Text)
		case highlighted && b.state == outsideSpan:
			b.open(r.Text)
		case highlighted:
			b.span.WriteString(r.Text)
		case b.state == insideSpan:
			b.close()
			b.out.WriteString(r.Text)
		default:
			b.out.WriteString(r.Text)
		}
	}

	if b.state == insideSpan {
		b.close()
	}

	return b.out.String()
}

// HasSpans reports whether the marked text contains at least one span
func HasSpans(marked string) bool {
	return strings.Contains(marked, MarkStart)
}

// StripMarkers removes every span marker, leaving the plain text
func StripMarkers(marked string) string {
	if !strings.Contains(marked, "SURLIGNÉ]") {
		return marked
	}
	return strings.NewReplacer(MarkStart, "", MarkEnd, "").Replace(marked)
}

// Spans returns the inner text of every wrapped span, in document order.
// An unterminated start marker yields no span.
func Spans(marked string) []string {
	var spans []string
	rest := marked
	for {
		start := strings.Index(rest, MarkStart)
		if start < 0 {
			return spans
		}
		rest = rest[start+len(MarkStart):]
		end := strings.Index(rest, MarkEnd)
		if end < 0 {
			return spans
		}
		spans = append(spans, rest[:end])
		rest = rest[end+len(MarkEnd):]
	}
}
