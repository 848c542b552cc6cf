package extract

import (
	"archive/zip"
	"fmt"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	// wtTag matches <w:t>text</w:t> with any attributes.
	wtTag = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	// wpEnd marks paragraph ends so paragraphs stay separated.
	wpEnd = regexp.MustCompile(`</w:p>`)

	// Override elements name the main part; attributes may come in either order.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// findDocxMainDocumentPath reads [Content_Types].xml and returns the main part
// without its leading slash, or "" when it is not declared.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	types, err := readZipEntry(zr, contentTypesPath)
	if err != nil || types == nil {
		return ""
	}
	for _, re := range []*regexp.Regexp{partNameRe, partNameRe2} {
		if m := re.FindSubmatch(types); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return ""
}

// extractDOCX returns every <w:t> run of the main document, one line per paragraph.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip("DOCX", content)
	if err != nil {
		return "", err
	}
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	var out []string
	for _, para := range wpEnd.Split(string(docXML), -1) {
		var b strings.Builder
		textRuns(&b, wtTag, para)
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	return strings.Join(out, "\n"), nil
}
