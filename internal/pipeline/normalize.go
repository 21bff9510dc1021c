package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// minMergeChars is the joined-content length under which a segment is
	// merged into its predecessor.
	minMergeChars = 300
	// maxTopicTokens is the per-topic token budget after splitting.
	maxTopicTokens = 8000
	// charsPerToken approximates completion-capability token cost.
	charsPerToken = 4
	// splitFillRatio sizes split chunks at 80% of the token budget.
	splitFillRatio = 0.8
	// maxTopicCount caps the number of topics per quiz.
	maxTopicCount = 50
	// summaryTriggerChars and summaryMaxChars control summary derivation
	// from a segment's first paragraph.
	summaryTriggerChars = 100
	summaryMaxChars     = 200
)

// NormalizedTopic is a size-constrained segment with its position in the
// topic forest. ParentIndex is a same-batch positional reference (-1 for
// roots); it is resolved to a persisted topic id only once topics are
// stored in order.
type NormalizedTopic struct {
	Title         string
	Level         int
	Summary       string
	Content       []string
	TokenEstimate int
	ParentIndex   int
}

// Normalize runs the four normalization passes over raw segments: merge
// undersized segments, split oversized ones, cap the total count at 50,
// and derive the parent forest from heading levels. All passes run even
// on a single-segment input.
func Normalize(segments []RawSegment) []NormalizedTopic {
	merged := mergeSmall(segments)
	split := splitLarge(merged)
	capped := capCount(split)
	return assignHierarchy(capped)
}

// mergeSmall folds segments whose joined content is under minMergeChars
// into the most recent segment that is itself still under the threshold,
// so large segments start their own entry and never absorb. With no
// under-threshold segment behind it, a small segment folds into the
// immediately previous one. The first segment always starts the output.
func mergeSmall(segments []RawSegment) []RawSegment {
	var out []RawSegment
	for _, seg := range segments {
		if len(out) > 0 && contentLength(seg.Content) < minMergeChars {
			target := len(out) - 1
			for i := len(out) - 1; i >= 0; i-- {
				if contentLength(out[i].Content) < minMergeChars {
					target = i
					break
				}
			}
			prev := &out[target]
			prev.Title = prev.Title + " / " + seg.Title
			prev.Content = append(prev.Content, seg.Content...)
			continue
		}
		out = append(out, RawSegment{
			Title:   seg.Title,
			Level:   seg.Level,
			Content: append([]string(nil), seg.Content...),
		})
	}
	return out
}

// splitLarge breaks segments over the token budget into chunks of whole
// paragraphs sized at 80% of the budget. Paragraphs are never split; a
// single paragraph over the budget becomes a chunk of its own.
func splitLarge(segments []RawSegment) []RawSegment {
	charBudget := int(float64(maxTopicTokens*charsPerToken) * splitFillRatio)

	var out []RawSegment
	for _, seg := range segments {
		if estimateTokens(seg.Title, seg.Content) <= maxTopicTokens {
			out = append(out, seg)
			continue
		}

		var chunk []string
		chunkLen := 0
		part := 0
		flush := func() {
			if len(chunk) == 0 {
				return
			}
			part++
			title := seg.Title
			if part > 1 {
				title = fmt.Sprintf("%s (Part %d)", seg.Title, part)
			}
			out = append(out, RawSegment{Title: title, Level: seg.Level, Content: chunk})
			chunk = nil
			chunkLen = 0
		}

		for _, para := range seg.Content {
			if len(chunk) > 0 && chunkLen+len(para) > charBudget {
				flush()
			}
			chunk = append(chunk, para)
			chunkLen += len(para) + 1
		}
		flush()
	}
	return out
}

// capCount enforces the 50-topic ceiling: the smallest overflow segments
// are all merged into the smallest segment that survives, so no paragraph
// is lost.
func capCount(segments []RawSegment) []RawSegment {
	if len(segments) <= maxTopicCount {
		return segments
	}

	order := make([]int, len(segments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return contentLength(segments[order[a]].Content) < contentLength(segments[order[b]].Content)
	})

	overflow := make(map[int]bool, len(segments)-maxTopicCount)
	for _, idx := range order[:len(segments)-maxTopicCount] {
		overflow[idx] = true
	}
	absorberIdx := order[len(segments)-maxTopicCount] // smallest kept segment

	absorber := &segments[absorberIdx]
	for _, idx := range order[:len(segments)-maxTopicCount] {
		absorber.Title = absorber.Title + "/" + segments[idx].Title
		absorber.Content = append(absorber.Content, segments[idx].Content...)
	}

	out := make([]RawSegment, 0, maxTopicCount)
	for i, seg := range segments {
		if overflow[i] {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// assignHierarchy derives each topic's parent from heading levels using a
// stack walk, and attaches the derived summary and token estimate.
func assignHierarchy(segments []RawSegment) []NormalizedTopic {
	type entry struct {
		level int
		index int
	}

	var stack []entry
	topics := make([]NormalizedTopic, 0, len(segments))
	for i, seg := range segments {
		for len(stack) > 0 && stack[len(stack)-1].level >= seg.Level {
			stack = stack[:len(stack)-1]
		}
		parent := -1
		if len(stack) > 0 {
			parent = stack[len(stack)-1].index
		}
		stack = append(stack, entry{level: seg.Level, index: i})

		topics = append(topics, NormalizedTopic{
			Title:         seg.Title,
			Level:         seg.Level,
			Summary:       deriveSummary(seg.Content),
			Content:       seg.Content,
			TokenEstimate: estimateTokens(seg.Title, seg.Content),
			ParentIndex:   parent,
		})
	}
	return topics
}

// deriveSummary takes the first paragraph, truncated to 200 characters
// with an ellipsis, but only when that paragraph exceeds 100 characters.
func deriveSummary(content []string) string {
	if len(content) == 0 {
		return ""
	}
	first := content[0]
	if len(first) <= summaryTriggerChars {
		return ""
	}
	runes := []rune(first)
	if len(runes) > summaryMaxChars {
		return string(runes[:summaryMaxChars]) + "..."
	}
	return first
}

func contentLength(content []string) int {
	return len(strings.Join(content, " "))
}

// estimateTokens approximates completion token cost as ⌈chars/4⌉ over the
// title plus joined content.
func estimateTokens(title string, content []string) int {
	chars := len(title) + contentLength(content)
	return (chars + charsPerToken - 1) / charsPerToken
}
