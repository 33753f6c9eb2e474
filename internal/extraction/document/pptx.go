package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

const drawingNS = "http://schemas.openxmlformats.org/drawingml/2006/main"

var (
	slidePart = regexp.MustCompile(`^ppt/slides/slide([0-9]+)\.xml$`)
	notesPart = regexp.MustCompile(`^ppt/notesSlides/notesSlide([0-9]+)\.xml$`)
)

type SlideNote struct {
	Slide int    `json:"slideNumber"`
	Text  string `json:"text"`
}

type numberedPart struct {
	num  int
	file *zip.File
}

func (p *Provider) extractPPTX(data []byte) (*extraction.Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, extraction.MalformedArchive("not a zip archive", err)
	}

	slides := partsMatching(zr, slidePart)
	if len(slides) == 0 {
		return nil, extraction.MalformedArchive("archive has no slides", nil)
	}

	var warnings []string
	segs := make([]extraction.Segment, 0, len(slides))
	for _, sp := range slides {
		text, err := readParagraphs(sp.file)
		if err != nil {
			p.log.Warn("skipping unreadable slide", "slide", sp.num, "error", err)
			warnings = append(warnings, fmt.Sprintf("slide %d skipped: %v", sp.num, err))
			continue
		}
		segs = append(segs, extraction.Segment{Index: sp.num, Text: text})
	}
	if len(segs) == 0 {
		return nil, extraction.MalformedArchive("no readable slides", nil)
	}

	var notes []SlideNote
	for _, np := range partsMatching(zr, notesPart) {
		text, err := readParagraphs(np.file)
		if err != nil {
			p.log.Warn("skipping unreadable notes", "slide", np.num, "error", err)
			continue
		}
		if text != "" {
			notes = append(notes, SlideNote{Slide: np.num, Text: text})
		}
	}

	meta := map[string]any{
		"slideCount":   len(segs),
		"documentType": "PPTX",
	}
	if len(notes) > 0 {
		meta["notes"] = notes
	}
	if title, desc, ok := coreProperties(zr); ok {
		if title != "" {
			meta["title"] = title
		}
		if desc != "" {
			meta["description"] = desc
		}
	}

	res := extraction.NewResult(extraction.ProviderPPTXXML, segs, meta)
	for _, w := range warnings {
		res.AddWarning(w)
	}
	return res, nil
}

// partsMatching returns the numbered parts sorted by their number, so slide10
// follows slide9.
func partsMatching(zr *zip.Reader, re *regexp.Regexp) []numberedPart {
	var out []numberedPart
	for _, f := range zr.File {
		m := re.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, numberedPart{num: n, file: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].num < out[j].num })
	return out
}

// readParagraphs collects a:t runs per a:p paragraph, one paragraph per line.
func readParagraphs(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		paras  []string
		cur    strings.Builder
		inPara bool
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", f.Name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != drawingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
			case "t":
				inText = true
			case "br":
				if inPara {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != drawingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					paras = append(paras, s)
				}
				inPara = false
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return strings.Join(paras, "\n"), nil
}

type coreProps struct {
	Title       string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Description string `xml:"http://purl.org/dc/elements/1.1/ description"`
}

func coreProperties(zr *zip.Reader) (string, string, bool) {
	for _, f := range zr.File {
		if f.Name != "docProps/core.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", "", false
		}
		defer rc.Close()
		var cp coreProps
		if err := xml.NewDecoder(rc).Decode(&cp); err != nil {
			return "", "", false
		}
		return strings.TrimSpace(cp.Title), strings.TrimSpace(cp.Description), true
	}
	return "", "", false
}
