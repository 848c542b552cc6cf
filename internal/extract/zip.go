package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// openZip opens an OOXML or OpenDocument package held in memory.
func openZip(format string, content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readZipEntry returns the contents of the entry called name, or nil when it is absent.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		return readZipFile(f)
	}
	return nil, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// textRuns appends the inner text of every match of re in xml to b, space separated.
// XML entities are decoded.
func textRuns(b *strings.Builder, re *regexp.Regexp, xml string) {
	for _, p := range re.FindAllStringSubmatch(xml, -1) {
		appendText(b, p[1])
	}
}

// appendText decodes XML entities in raw and appends it to b, space separated, unless blank.
func appendText(b *strings.Builder, raw string) {
	t := strings.TrimSpace(html.UnescapeString(raw))
	if t == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(t)
}
