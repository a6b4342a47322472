// Package importer implements the bulk CSV contact import pipeline:
// header-aliased parsing, per-row validation, batched dedup, amortized
// geocoding, and chunked bulk writes.
package importer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Row is one parsed CSV line mapped onto the logical contact fields.
// Index is the 1-based data row number, used in skip reports.
type Row struct {
	Index int

	FirstName           string
	LastName            string
	Email               string
	Position            string
	Company             string
	Phone               string
	WorkPhone           string
	HomePhone           string
	Address             string
	AdditionalAddresses string
	City                string
	State               string
	Country             string
	Timezone            string
	Birthday            string
	Notes               string
	Title               string
	Role                string
	WebsiteURL          string

	Latitude  *float64
	Longitude *float64

	Tags       []string
	Industries []string
	Socials    map[string]string
}

// headerAliases maps each logical field to the accepted column names.
// Header names are lower-cased and trimmed before matching, so the
// aliases are spelled that way here.
var headerAliases = map[string][]string{
	"firstName":           {"firstname", "first_name", "first"},
	"lastName":            {"lastname", "last_name", "last"},
	"email":               {"email"},
	"position":            {"position"},
	"company":             {"company", "company_name"},
	"phone":               {"phone"},
	"workPhone":           {"workphone", "work_phone"},
	"homePhone":           {"homephone", "home_phone"},
	"address":             {"address"},
	"additionalAddresses": {"additionaladdresses", "additional_addresses"},
	"city":                {"city"},
	"latitude":            {"latitude"},
	"longitude":           {"longitude"},
	"timezone":            {"timezone"},
	"birthday":            {"birthday"},
	"notes":               {"notes"},
	"title":               {"title"},
	"role":                {"role"},
	"websiteUrl":          {"websiteurl", "website_url"},
	"state":               {"state", "state_code", "province"},
	"country":             {"country", "country_code"},
	"tags":                {"tags"},
	"industries":          {"industries"},
	"socials":             {"socials"},
}

// ParseCSV reads a header-driven CSV stream into rows. Unknown columns
// are carried through under a positional col_<i> key so nothing is lost,
// though only aliased columns feed the contact fields.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: read CSV header")
	}
	for i, col := range header {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	var rows []Row
	index := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}
		index++

		cells := make(map[string]string, len(record))
		for i, value := range record {
			key := fmt.Sprintf("col_%d", i)
			if i < len(header) && header[i] != "" {
				key = header[i]
			}
			cells[key] = value
		}

		rows = append(rows, mapRow(index, cells))
	}

	return rows, nil
}

// mapRow resolves aliases and parses the structured cells.
func mapRow(index int, cells map[string]string) Row {
	get := func(field string) string {
		for _, alias := range headerAliases[field] {
			if v, ok := cells[alias]; ok && v != "" {
				return v
			}
		}
		return ""
	}

	return Row{
		Index:               index,
		FirstName:           get("firstName"),
		LastName:            get("lastName"),
		Email:               strings.ToLower(strings.TrimSpace(get("email"))),
		Position:            get("position"),
		Company:             get("company"),
		Phone:               get("phone"),
		WorkPhone:           get("workPhone"),
		HomePhone:           get("homePhone"),
		Address:             get("address"),
		AdditionalAddresses: get("additionalAddresses"),
		City:                get("city"),
		State:               get("state"),
		Country:             get("country"),
		Timezone:            get("timezone"),
		Birthday:            parseDate(get("birthday")),
		Notes:               get("notes"),
		Title:               get("title"),
		Role:                get("role"),
		WebsiteURL:          get("websiteUrl"),
		Latitude:            parseCoordinate(get("latitude")),
		Longitude:           parseCoordinate(get("longitude")),
		Tags:                parseList(get("tags")),
		Industries:          parseList(get("industries")),
		Socials:             parseSocials(get("socials")),
	}
}

// parseList decodes a cell as a JSON array, falling back to splitting on
// ';' or ','. Empty pieces and the literal "null" are dropped.
func parseList(value string) []string {
	if value == "" || value == "null" {
		return nil
	}

	var decoded []string
	if err := json.Unmarshal([]byte(value), &decoded); err == nil {
		out := make([]string, 0, len(decoded))
		for _, v := range decoded {
			if t := strings.TrimSpace(v); t != "" {
				out = append(out, t)
			}
		}
		return out
	}

	var out []string
	for _, piece := range splitListCell(value) {
		if piece != "" && piece != "null" {
			out = append(out, piece)
		}
	}
	return out
}

// parseSocials decodes a cell as a JSON object, falling back to
// ';'/','-separated key:value pairs. A piece without a colon becomes a
// key with an empty value.
func parseSocials(value string) map[string]string {
	if value == "" || value == "null" {
		return nil
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(value), &decoded); err == nil {
		return decoded
	}

	out := map[string]string{}
	for _, piece := range splitListCell(value) {
		if piece == "" || piece == "null" {
			continue
		}
		if key, val, found := strings.Cut(piece, ":"); found {
			out[strings.TrimSpace(key)] = strings.TrimSpace(val)
		} else {
			out[piece] = ""
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// splitListCell splits on ';' or ',' and trims each piece.
func splitListCell(value string) []string {
	pieces := strings.FieldsFunc(value, func(r rune) bool {
		return r == ';' || r == ','
	})
	for i := range pieces {
		pieces[i] = strings.TrimSpace(pieces[i])
	}
	return pieces
}

// parseCoordinate turns a cell into a nullable coordinate. Empty,
// unparseable, and exactly-zero values all map to nil: 0 is the legacy
// "not geocoded" sentinel and is never stored as a real coordinate.
func parseCoordinate(value string) *float64 {
	v := strings.TrimSpace(value)
	if v == "" || v == "?" || v == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f == 0 {
		return nil
	}
	return &f
}

// parseDate normalizes a birthday cell to YYYY-MM-DD, returning "" when
// it cannot be parsed.
func parseDate(value string) string {
	v := strings.TrimSpace(value)
	if v == "" || v == "null" {
		return ""
	}
	for _, layout := range []string{"2006-01-02", "01/02/2006", "2006/01/02", "Jan 2, 2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
