package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// odfContentPath is the main content part of every OpenDocument package.
const odfContentPath = "content.xml"

// odfBlock matches a paragraph or heading including nested spans.
var odfBlock = regexp.MustCompile(`(?s)<text:(p|h)(?:\s[^>]*)?>(.*?)</text:(?:p|h)>`)

var odfInlineTag = regexp.MustCompile(`<[^>]+>`)

// extractOpenDocument returns the paragraphs and headings of an .odt, .odp or .ods
// file, one per line. Inline markup such as text:span is dropped and its text kept.
func extractOpenDocument(format string, content []byte) (string, error) {
	zr, err := openZip(format, content)
	if err != nil {
		return "", err
	}
	xml, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract %s: %s not found", format, odfContentPath)
	}

	var out []string
	for _, m := range odfBlock.FindAllStringSubmatch(string(xml), -1) {
		inner := strings.ReplaceAll(m[2], "<text:s/>", " ")
		inner = strings.ReplaceAll(inner, "<text:tab/>", " ")
		var b strings.Builder
		appendText(&b, odfInlineTag.ReplaceAllString(inner, ""))
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	return strings.Join(out, "\n"), nil
}
