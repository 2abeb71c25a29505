package loader

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		pages = append(pages, pageText(reader, i))
	}
	return strings.Join(pages, "\n"), nil
}

// pageText returns "" for pages the parser cannot handle.
func pageText(reader *pdf.Reader, num int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	out, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(out, "")
}
