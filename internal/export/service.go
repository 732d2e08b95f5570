package export

import "fmt"

// Service renders review reports in the requested format.
type Service struct{}

// NewService creates an export service.
func NewService() *Service {
	return &Service{}
}

// Export renders the report HTML and converts it to the requested format.
func (s *Service) Export(data ReportData, format Format) (*Result, error) {
	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	base := data.EntityTitle
	if base == "" {
		base = data.ContributionID
	}

	switch format {
	case FormatPDF:
		return exportPDF(html, base)
	case FormatDOCX:
		return exportDOCX(html, base)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
