// Package ingest parses delimited listing exports into normalized
// listing.Record values, one per distinct product identifier. Malformed
// cells degrade to omitted or defaulted fields; only a missing identifier
// column is fatal to the whole pass.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Mharish0341/Trustguard/internal/listing"
	apperrors "github.com/Mharish0341/Trustguard/pkg/errors"
)

var imageColumns = []string{"images", "image_urls", "img_url"}

// row is one source row keyed by cleaned column name.
type row map[string]string

// Parse reads a CSV export and returns one Record per distinct identifier,
// in first-seen group order. All rows sharing an identifier are merged.
func Parse(r io.Reader) ([]listing.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitBadInput, "empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = cleanHeader(h)
	}

	idCol := identifierColumn(headers)
	if idCol < 0 {
		return nil, apperrors.New(apperrors.ErrMissingIdentifierColumn,
			apperrors.ExitBadInput, "input must contain an ASIN column")
	}

	logger := slog.Default().With("component", "ingest")
	var order []string
	groups := make(map[string][]row)
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A row the CSV layer cannot parse is dropped, not fatal.
			logger.Warn("skipping malformed row", "line", line, "error", err)
			continue
		}
		rw := make(row, len(headers))
		for i, h := range headers {
			if i < len(fields) {
				rw[h] = strings.TrimSpace(fields[i])
			}
		}
		id := rw[headers[idCol]]
		if id == "" {
			logger.Warn("skipping row without identifier", "line", line)
			continue
		}
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], rw)
	}

	records := make([]listing.Record, 0, len(order))
	for _, id := range order {
		records = append(records, mergeGroup(id, groups[id]))
	}
	return records, nil
}

// mergeGroup folds all rows sharing one identifier into a single Record.
// Scalar fields come from the canonical row; images, reviews and ratings
// aggregate across the whole group.
func mergeGroup(id string, rows []row) listing.Record {
	canon := canonicalRow(rows)

	rec := listing.Record{
		ID:          id,
		Title:       canon["title"],
		Description: canon["description"],
		URL:         canon["product_url"],
		Returns:     parseReturns(canon),
	}
	if rec.URL == "" {
		rec.URL = "https://www.amazon.in/dp/" + id
	}

	seen := make(map[string]struct{})
	for _, rw := range rows {
		for _, u := range collectImages(rw) {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			rec.Images = append(rec.Images, u)
		}
		rec.Reviews = append(rec.Reviews, parseReviews(rw)...)
		if v := rw["rating"]; v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				rec.Ratings = append(rec.Ratings, f)
			}
		}
	}
	return rec
}

// canonicalRow picks the row that supplies the scalar fields: with a type
// discriminator, the first "product" row; otherwise the first row.
func canonicalRow(rows []row) row {
	for _, rw := range rows {
		if strings.EqualFold(rw["type"], "product") {
			return rw
		}
	}
	return rows[0]
}

// collectImages splits the first recognized image column of the row on `|`
// and keeps only http-prefixed URLs.
func collectImages(rw row) []string {
	for _, key := range imageColumns {
		cell, ok := rw[key]
		if !ok || cell == "" {
			continue
		}
		var urls []string
		for _, part := range strings.Split(cell, "|") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "http") {
				urls = append(urls, part)
			}
		}
		return urls
	}
	return nil
}

// reviewObject is one element of a reviews_json cell.
type reviewObject struct {
	Body string `json:"body"`
}

// parseReviews extracts review bodies from a row: reviews_json first, then
// the double-pipe-delimited review_texts fallback. Malformed JSON falls
// through to the fallback rather than failing the row.
func parseReviews(rw row) []string {
	if cell := rw["reviews_json"]; cell != "" {
		var objs []reviewObject
		if err := json.Unmarshal([]byte(cell), &objs); err == nil {
			var bodies []string
			for _, o := range objs {
				if body := strings.TrimSpace(o.Body); body != "" {
					bodies = append(bodies, body)
				}
			}
			return bodies
		}
	}
	if cell := rw["review_texts"]; cell != "" {
		var bodies []string
		for _, part := range strings.Split(cell, "||") {
			if part = strings.TrimSpace(part); part != "" {
				bodies = append(bodies, part)
			}
		}
		return bodies
	}
	return nil
}

// parseReturns reads the return count from the canonical row, trying
// `returns` then `return_count`. Unparsable or absent values default to 0.
func parseReturns(rw row) int {
	for _, key := range []string{"returns", "return_count"} {
		if v := rw[key]; v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}
