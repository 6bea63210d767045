// Package office implements the Office Extractor (C10): converts DOCX,
// PPTX, and XLSX source documents directly into the DocumentText JSON
// shape, bypassing the split/combine join that PDFs need since an Office
// document is read whole. Each format is read as a zip of OOXML parts
// with archive/zip and encoding/xml.
package office

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	pipeerrors "github.com/adverant/idp-retrieval-platform/internal/errors"
	"github.com/adverant/idp-retrieval-platform/internal/dispatch"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
	"github.com/adverant/idp-retrieval-platform/internal/objectstore"
)

// DocumentText mirrors the combine stage's output shape so office
// documents and PDF-pipeline documents are interchangeable to downstream
// chunking/embedding.
type DocumentText struct {
	DocumentID string   `json:"documentId"`
	Type       string   `json:"type"`
	PageCount  int      `json:"pageCount"`
	Pages      []string `json:"pages"`
}

// Stage is the C10 component.
type Stage struct {
	gw              *objectstore.Gateway
	log             *logging.Logger
	officeDocPrefix string
	textDocPrefix   string
}

// New constructs an Office Extractor Stage.
func New(gw *objectstore.Gateway, log *logging.Logger, officeDocPrefix, textDocPrefix string) *Stage {
	return &Stage{
		gw:              gw,
		log:             log,
		officeDocPrefix: dispatch.NormalizePrefix(officeDocPrefix),
		textDocPrefix:   dispatch.NormalizePrefix(textDocPrefix),
	}
}

func (s *Stage) Name() string { return "office-extractor" }

func (s *Stage) Matches(_, key string) bool {
	if !strings.HasPrefix(key, s.officeDocPrefix) {
		return false
	}
	return dispatch.HasExtension(key, ".docx", ".pptx", ".xlsx")
}

// Handle reads an Office document whole and writes its DocumentText JSON
// directly under textDocPrefix, with no split/combine round trip.
func (s *Stage) Handle(ctx context.Context, bucket, key string) error {
	body, err := s.gw.Get(ctx, bucket, key)
	if err != nil {
		return err
	}

	docID := DocumentID(key, s.officeDocPrefix)
	ext := strings.ToLower(key[strings.LastIndex(key, "."):])

	var pages []string
	var docType string
	switch ext {
	case ".docx":
		docType = "docx"
		text, perr := extractDOCX(body)
		if perr != nil {
			return &pipeerrors.ProcessingError{Code: pipeerrors.ErrorParseFailed, Message: "failed to parse docx", JobID: docID, Cause: perr}
		}
		pages = []string{renderPage(1, text)}
	case ".pptx":
		docType = "pptx"
		slides, perr := extractPPTX(body)
		if perr != nil {
			return &pipeerrors.ProcessingError{Code: pipeerrors.ErrorParseFailed, Message: "failed to parse pptx", JobID: docID, Cause: perr}
		}
		for i, slide := range slides {
			pages = append(pages, renderPage(i+1, slide))
		}
	case ".xlsx":
		docType = "xlsx"
		sheets, perr := extractXLSX(body)
		if perr != nil {
			return &pipeerrors.ProcessingError{Code: pipeerrors.ErrorParseFailed, Message: "failed to parse xlsx", JobID: docID, Cause: perr}
		}
		for i, sheet := range sheets {
			pages = append(pages, renderPage(i+1, sheet))
		}
	default:
		return &pipeerrors.ProcessingError{Code: pipeerrors.ErrorInputInvalid, Message: "unsupported office extension", JobID: docID}
	}

	doc := DocumentText{DocumentID: docID, Type: docType, PageCount: len(pages), Pages: pages}
	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.gw.Put(ctx, bucket, s.textDocPrefix+docID+".json", out, "application/json")
}

func renderPage(n int, body string) string {
	return fmt.Sprintf("## Page %d\n\n%s\n", n, strings.TrimRight(body, "\n"))
}

// DocumentID derives the stable documentId from the basename stem.
func DocumentID(key, prefix string) string {
	rel := strings.TrimPrefix(key, prefix)
	if idx := strings.LastIndex(rel, "."); idx >= 0 {
		rel = rel[:idx]
	}
	if idx := strings.LastIndex(rel, "/"); idx >= 0 {
		rel = rel[idx+1:]
	}
	return rel
}

// --- DOCX ---

type wordDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    struct {
		Paragraphs []struct {
			Runs []struct {
				Text []string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

func extractDOCX(body []byte) (string, error) {
	part, err := readZipPart(body, "word/document.xml")
	if err != nil {
		return "", err
	}
	var doc wordDocument
	if err := xml.Unmarshal(part, &doc); err != nil {
		return "", err
	}
	var lines []string
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				sb.WriteString(t)
			}
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n"), nil
}

// --- PPTX ---

type pptxSlideXML struct {
	XMLName xml.Name `xml:"sld"`
	Body    struct {
		Shapes []struct {
			TextBody struct {
				Paragraphs []struct {
					Runs []struct {
						Text string `xml:"t"`
					} `xml:"r"`
				} `xml:"p"`
			} `xml:"txBody"`
		} `xml:"sp"`
	} `xml:"cSld>spTree"`
}

func extractPPTX(body []byte) ([]string, error) {
	r, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}

	var slideParts []string
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slideParts = append(slideParts, f.Name)
		}
	}
	sortSlideNames(slideParts)

	slides := make([]string, 0, len(slideParts))
	for _, name := range slideParts {
		data, err := readZipFile(r, name)
		if err != nil {
			return nil, err
		}
		var slide pptxSlideXML
		if err := xml.Unmarshal(data, &slide); err != nil {
			return nil, err
		}
		var lines []string
		for _, sp := range slide.Body.Shapes {
			for _, p := range sp.TextBody.Paragraphs {
				var sb strings.Builder
				for _, r := range p.Runs {
					sb.WriteString(r.Text)
				}
				if sb.Len() > 0 {
					lines = append(lines, sb.String())
				}
			}
		}
		slides = append(slides, strings.Join(lines, "\n"))
	}
	return slides, nil
}

func sortSlideNames(names []string) {
	// slideN.xml natural-order sort by numeric N
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && slideNum(names[j-1]) > slideNum(names[j]); j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}

func slideNum(name string) int {
	base := strings.TrimPrefix(name, "ppt/slides/slide")
	base = strings.TrimSuffix(base, ".xml")
	n := 0
	for _, c := range base {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// --- XLSX ---

type sheetXML struct {
	SheetData struct {
		Rows []struct {
			Cells []struct {
				Ref  string `xml:"r,attr"`
				Type string `xml:"t,attr"`
				V    string `xml:"v"`
			} `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

type sharedStrings struct {
	Items []struct {
		T string `xml:"t"`
	} `xml:"si"`
}

func extractXLSX(body []byte) ([]string, error) {
	r, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}

	var strs sharedStrings
	if data, err := readZipFile(r, "xl/sharedStrings.xml"); err == nil {
		_ = xml.Unmarshal(data, &strs)
	}

	var sheetNames []string
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			sheetNames = append(sheetNames, f.Name)
		}
	}
	sortSheetNames(sheetNames)

	sheets := make([]string, 0, len(sheetNames))
	for _, name := range sheetNames {
		data, err := readZipFile(r, name)
		if err != nil {
			return nil, err
		}
		var sheet sheetXML
		if err := xml.Unmarshal(data, &sheet); err != nil {
			return nil, err
		}
		sheets = append(sheets, renderSheetTable(sheet, strs))
	}
	return sheets, nil
}

func renderSheetTable(sheet sheetXML, strs sharedStrings) string {
	var rows [][]string
	maxCols := 0
	for _, row := range sheet.SheetData.Rows {
		var cells []string
		for _, c := range row.Cells {
			val := c.V
			if c.Type == "s" {
				if idx := atoiSafe(val); idx >= 0 && idx < len(strs.Items) {
					val = strs.Items[idx].T
				}
			}
			cells = append(cells, val)
		}
		if len(cells) > maxCols {
			maxCols = len(cells)
		}
		rows = append(rows, cells)
	}
	if len(rows) == 0 {
		return ""
	}

	var out strings.Builder
	for i, row := range rows {
		for len(row) < maxCols {
			// empty cells serialize as empty strings
			row = append(row, "")
		}
		out.WriteString("| " + strings.Join(row, " | ") + " |\n")
		if i == 0 {
			delim := make([]string, maxCols)
			for j := range delim {
				delim[j] = "---"
			}
			out.WriteString("| " + strings.Join(delim, " | ") + " |\n")
		}
	}
	return out.String()
}

func atoiSafe(s string) int {
	n := 0
	if s == "" {
		return -1
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func sortSheetNames(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && sheetNum(names[j-1]) > sheetNum(names[j]); j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}

func sheetNum(name string) int {
	base := strings.TrimPrefix(name, "xl/worksheets/sheet")
	base = strings.TrimSuffix(base, ".xml")
	n := 0
	for _, c := range base {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// --- zip helpers ---

func readZipPart(body []byte, name string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, err
	}
	return readZipFile(r, name)
}

func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(rc); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("zip part not found: %s", name)
}
