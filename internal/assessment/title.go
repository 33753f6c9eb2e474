package assessment

import (
	"fmt"
	"strings"

	"github.com/yungbote/assessgen-backend/internal/extraction"
)

// SourceInfo is what titles and descriptions are derived from.
type SourceInfo struct {
	VideoID      string
	FileName     string
	DocumentType string
}

func sourceInfoOf(d extraction.InputDescriptor, res *extraction.Result) SourceInfo {
	var info SourceInfo
	if res != nil {
		info.VideoID, _ = res.SourceMetadata["videoId"].(string)
		info.FileName, _ = res.SourceMetadata["fileName"].(string)
		switch res.ProviderUsed {
		case extraction.ProviderPDFStructural, extraction.ProviderPDFOCR:
			info.DocumentType = "PDF"
		case extraction.ProviderPPTXXML:
			info.DocumentType = "PPTX"
		case extraction.ProviderPPTHeuristic:
			info.DocumentType = "PPT"
		}
	}
	if info.FileName == "" {
		info.FileName = d.OriginalName()
	}
	return info
}

func Title(src SourceInfo) string {
	if id := strings.TrimSpace(src.VideoID); id != "" {
		if len(id) > 8 {
			id = id[:8]
		}
		return fmt.Sprintf("YouTube Assessment (%s)", id)
	}
	if stem, _, _ := strings.Cut(strings.TrimSpace(src.FileName), "."); stem != "" {
		return "Assessment: " + stem
	}
	if src.DocumentType != "" {
		return src.DocumentType + " Assessment"
	}
	return "Generated Assessment"
}

func Description(opts Options, count int) string {
	return fmt.Sprintf("%s assessment with %d questions at %s difficulty.", opts.Type, count, opts.Difficulty)
}
