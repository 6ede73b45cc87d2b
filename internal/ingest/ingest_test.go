package ingest

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/Mharish0341/Trustguard/pkg/errors"
)

func TestCleanHeader(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "asin", "asin"},
		{"uppercase", "ASIN", "asin"},
		{"surrounding whitespace", "  Product URL  ", "product_url"},
		{"inner whitespace collapsed", "review\t texts", "review_texts"},
		{"zero width space", "as\u200bin", "asin"},
		{"rtl mark", "asin\u200f", "asin"},
		{"bom", "\ufeffasin", "asin"},
		{"fullwidth compatibility form", "ａｓｉｎ", "asin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanHeader(tt.in); got != tt.want {
				t.Errorf("cleanHeader(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIdentifierColumn(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    int
	}{
		{"exact", []string{"title", "asin"}, 1},
		{"trailing underscore", []string{"asin_"}, 0},
		{"double underscore", []string{"asin__"}, 0},
		{"prefix does not match", []string{"asin_code"}, -1},
		{"absent", []string{"title", "sku"}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := identifierColumn(tt.headers); got != tt.want {
				t.Errorf("identifierColumn(%v) = %d, want %d", tt.headers, got, tt.want)
			}
		})
	}
}

func TestParseMissingIdentifierColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("title,price\nWidget,9.99\n"))
	if !errors.Is(err, apperrors.ErrMissingIdentifierColumn) {
		t.Fatalf("expected ErrMissingIdentifierColumn, got %v", err)
	}
	if code := apperrors.ExitCode(err); code != apperrors.ExitBadInput {
		t.Errorf("exit code = %d, want %d", code, apperrors.ExitBadInput)
	}
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseGroupsRowsByIdentifier(t *testing.T) {
	input := strings.Join([]string{
		`asin,type,title,images,rating,reviews_json,returns`,
		`B001,product,Running Shoe,http://img/a.jpg|http://img/b.jpg,4.5,,12`,
		`B001,review,,,1.0,"[{""body"":""fell apart""}]",`,
		`B002,product,Water Bottle,http://img/c.jpg,5.0,,0`,
		`B001,review,,http://img/a.jpg,2.0,"[{""body"":""fake brand""}]",`,
	}, "\n")

	records, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.ID != "B001" {
		t.Errorf("first record id = %q, want B001 (first-seen order)", first.ID)
	}
	if first.Title != "Running Shoe" {
		t.Errorf("title = %q, want from the product row", first.Title)
	}
	if len(first.Images) != 2 {
		t.Errorf("images = %v, want 2 deduplicated urls", first.Images)
	}
	if len(first.Reviews) != 2 {
		t.Errorf("reviews = %v, want bodies from both review rows", first.Reviews)
	}
	if len(first.Ratings) != 3 {
		t.Errorf("ratings = %v, want values from all 3 rows", first.Ratings)
	}
	if first.Returns != 12 {
		t.Errorf("returns = %d, want 12 from the product row", first.Returns)
	}

	if records[1].ID != "B002" {
		t.Errorf("second record id = %q, want B002", records[1].ID)
	}
}

func TestParseCanonicalRowWithoutTypeColumn(t *testing.T) {
	input := "asin,title\nB001,First Title\nB001,Second Title\n"
	records, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Title != "First Title" {
		t.Errorf("title = %q, want first row when no type column exists", records[0].Title)
	}
}

func TestParseDefaultURL(t *testing.T) {
	records, err := Parse(strings.NewReader("asin,title\nB00X,Thing\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := records[0].URL, "https://www.amazon.in/dp/B00X"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestParseSkipsRowsWithoutIdentifier(t *testing.T) {
	input := "asin,title\n,Orphan Row\nB001,Kept\n"
	records, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 1 || records[0].ID != "B001" {
		t.Fatalf("records = %+v, want only B001", records)
	}
}

func TestParseBidiHeaderStillMatches(t *testing.T) {
	input := "\u200fASIN\u200e,title\nB001,Widget\n"
	records, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse with bidi-wrapped header: %v", err)
	}
	if len(records) != 1 || records[0].ID != "B001" {
		t.Fatalf("records = %+v, want one record for B001", records)
	}
}

func TestCollectImages(t *testing.T) {
	tests := []struct {
		name string
		rw   row
		want int
	}{
		{"pipe separated", row{"images": "http://a | http://b"}, 2},
		{"non-http filtered", row{"images": "ftp://a|http://b|not-a-url"}, 1},
		{"fallback column", row{"image_urls": "https://a"}, 1},
		{"first column wins", row{"images": "http://a", "img_url": "http://b|http://c"}, 1},
		{"empty", row{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collectImages(tt.rw); len(got) != tt.want {
				t.Errorf("collectImages(%v) = %v, want %d urls", tt.rw, got, tt.want)
			}
		})
	}
}

func TestParseReviews(t *testing.T) {
	tests := []struct {
		name string
		rw   row
		want []string
	}{
		{
			"reviews_json",
			row{"reviews_json": `[{"body":"great"},{"body":" padded "},{"body":""}]`},
			[]string{"great", "padded"},
		},
		{
			"malformed json falls through to review_texts",
			row{"reviews_json": "{not json", "review_texts": "one||two"},
			[]string{"one", "two"},
		},
		{
			"review_texts delimiter",
			row{"review_texts": " one || || two "},
			[]string{"one", "two"},
		},
		{"neither", row{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseReviews(tt.rw)
			if len(got) != len(tt.want) {
				t.Fatalf("parseReviews = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("review[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func BenchmarkParse(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("asin,type,title,images,rating,review_texts,returns\n")
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "B%04d,product,Item %d,http://img/%d.jpg|http://img/%d-alt.jpg,4.2,good||works||fine,%d\n",
			i%100, i, i, i, i%30)
	}
	input := sb.String()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(strings.NewReader(input)); err != nil {
			b.Fatal(err)
		}
	}
}

func TestParseReturns(t *testing.T) {
	tests := []struct {
		name string
		rw   row
		want int
	}{
		{"returns column", row{"returns": "7"}, 7},
		{"return_count fallback", row{"return_count": "3"}, 3},
		{"returns wins over fallback", row{"returns": "7", "return_count": "3"}, 7},
		{"unparsable defaults", row{"returns": "many"}, 0},
		{"absent defaults", row{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseReturns(tt.rw); got != tt.want {
				t.Errorf("parseReturns(%v) = %d, want %d", tt.rw, got, tt.want)
			}
		})
	}
}
