package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pptxSlideRe matches slide parts and captures the slide number.
var pptxSlideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes.
var atTag = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)

// extractPPTX returns the <a:t> runs of each slide, one line per slide in slide order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip("PPTX", content)
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		m := pptxSlideRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		n, _ := strconv.Atoi(m[1])
		var b strings.Builder
		textRuns(&b, atTag, string(data))
		slides = append(slides, slide{n: n, text: b.String()})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var out []string
	for _, s := range slides {
		if s.text != "" {
			out = append(out, s.text)
		}
	}
	return strings.Join(out, "\n"), nil
}
