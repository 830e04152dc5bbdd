package pipeline

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

// CSV column headers recognized by the importer. Matching is
// case-insensitive and ignores surrounding whitespace.
const (
	headerCompanyName = "company name"
	headerWebsiteURL  = "website url"
	headerLinkedInURL = "linkedin url"
)

// CompanyRow is one valid CSV row with its original line number.
type CompanyRow struct {
	Row     int
	Company model.Company
}

// ParseCompanies reads a prospect CSV. The Company Name column is required;
// Website URL and LinkedIn URL are optional. Rows with an empty company name
// are skipped and reported by row number. A file where every row is skipped
// is not an error; callers get the per-row skip reasons instead.
func ParseCompanies(r io.Reader) ([]CompanyRow, []model.RowResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, eris.New("csv: file is empty")
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "csv: read header")
	}

	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	nameIdx, ok := cols[headerCompanyName]
	if !ok {
		return nil, nil, eris.Errorf("csv: missing required column %q", "Company Name")
	}
	websiteIdx, hasWebsite := cols[headerWebsiteURL]
	linkedinIdx, hasLinkedIn := cols[headerLinkedInURL]

	var companies []CompanyRow
	var skipped []model.RowResult
	row := 1 // header is row 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			skipped = append(skipped, model.RowResult{Row: row, Error: err.Error()})
			continue
		}

		name := strings.TrimSpace(field(record, nameIdx))
		if name == "" {
			skipped = append(skipped, model.RowResult{Row: row, Error: "empty company name"})
			continue
		}

		c := model.Company{Name: name}
		if hasWebsite {
			c.WebsiteURL = strings.TrimSpace(field(record, websiteIdx))
		}
		if hasLinkedIn {
			c.LinkedInURL = strings.TrimSpace(field(record, linkedinIdx))
		}
		companies = append(companies, CompanyRow{Row: row, Company: c})
	}

	return companies, skipped, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
