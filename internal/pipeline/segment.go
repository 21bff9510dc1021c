// Package pipeline turns rendered page markup into a topic forest and,
// from there, into validated multiple-choice quizzes. Stages: segment the
// headings, normalize the segments under size and count constraints,
// enrich topics and generate questions through the completion gateway,
// then merge the results into a bounded final question set.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RawSegment is one heading plus the paragraph text that follows it before
// the next heading.
type RawSegment struct {
	Title   string
	Level   int
	Content []string
}

const headingSelector = "h1, h2, h3"

// Segment walks the three recognized heading levels in document order and
// collects, for each heading, all paragraph text in following siblings up
// to the next heading. Siblings whose subtree contains a heading are not
// entered. Headings with empty text are skipped. Empty markup yields an
// empty list; rejecting that is the caller's concern.
func Segment(markup string) ([]RawSegment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing markup: %w", err)
	}

	var segments []RawSegment
	doc.Find(headingSelector).Each(func(_ int, heading *goquery.Selection) {
		title := strings.TrimSpace(heading.Text())
		if title == "" {
			return
		}

		seg := RawSegment{
			Title: title,
			Level: headingLevel(goquery.NodeName(heading)),
		}

		for sib := heading.Next(); sib.Length() > 0; sib = sib.Next() {
			if isHeading(goquery.NodeName(sib)) {
				break
			}
			// The next heading may sit inside a wrapper sibling; stop
			// before entering that subtree.
			if sib.Find(headingSelector).Length() > 0 {
				break
			}
			seg.Content = append(seg.Content, paragraphs(sib)...)
		}

		segments = append(segments, seg)
	})

	return segments, nil
}

// paragraphs returns the non-empty paragraph texts of sel, including sel
// itself when it is a <p>.
func paragraphs(sel *goquery.Selection) []string {
	var out []string
	add := func(s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
	}

	if goquery.NodeName(sel) == "p" {
		add(sel)
		return out
	}
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		add(p)
	})
	return out
}

// pageText returns the whole document's visible text, collapsed to single
// spaces. The flat path uses it when a page has no heading structure.
func pageText(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parsing markup: %w", err)
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

func isHeading(name string) bool {
	return name == "h1" || name == "h2" || name == "h3"
}

func headingLevel(name string) int {
	switch name {
	case "h1":
		return 1
	case "h2":
		return 2
	default:
		return 3
	}
}
