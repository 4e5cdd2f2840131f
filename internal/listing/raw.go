package listing

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Raw is a listing as delivered by a source, before normalization.
// Every field is kept as text; sources disagree on whether prices and
// counts are numbers or display strings.
type Raw struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Platform string `json:"platform,omitempty"`
	Image    string `json:"image,omitempty"`
	Link     string `json:"link,omitempty"`
	Rating   string `json:"rating,omitempty"`
	Reviews  string `json:"reviews,omitempty"`
}

// rawAliases lists the accepted JSON keys per field, first match wins.
var rawAliases = map[string][]string{
	"id":       {"id", "_id", "listing_id"},
	"title":    {"title", "name"},
	"price":    {"price", "current_price"},
	"platform": {"platform", "source"},
	"image":    {"image", "imageUrl", "image_url", "img"},
	"link":     {"link", "url", "href"},
	"rating":   {"rating", "stars"},
	"reviews":  {"reviews", "reviewCount", "review_count", "ratings_count"},
}

// UnmarshalJSON accepts any scalar for every field and the key aliases
// used by the different fetchers.
func (r *Raw) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	pick := func(name string) string {
		for _, k := range rawAliases[name] {
			if v, ok := fields[k]; ok {
				if s := scalarString(v); s != "" {
					return s
				}
			}
		}
		return ""
	}
	*r = Raw{
		ID:       pick("id"),
		Title:    pick("title"),
		Price:    pick("price"),
		Platform: pick("platform"),
		Image:    pick("image"),
		Link:     pick("link"),
		Rating:   pick("rating"),
		Reviews:  pick("reviews"),
	}
	return nil
}

func scalarString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// ParsePrice strips every non-digit from s. The boolean is false when s
// contains no digit at all, which excludes the record.
func ParsePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseReviewCount reads the leading count of s, such as "(1,204)", "2.5k"
// or "1.2K ratings". A "k" right after the number multiplies by 1000.
// Anything unreadable is 0.
func ParseReviewCount(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("(", "", ")", "", ",", "", " ", "").Replace(s)

	end, dots := 0, 0
	for end < len(s) {
		c := s[end]
		if c == '.' && dots == 0 {
			dots++
		} else if c < '0' || c > '9' {
			break
		}
		end++
	}
	num := strings.TrimSuffix(s[:end], ".")
	if num == "" {
		return 0
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if end < len(s) && s[end] == 'k' {
		return int(f * 1000)
	}
	return int(f)
}

// ParseRating reads the leading decimal of s and clamps it to [0,5].
// Unreadable input is 0.
func ParseRating(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return min(max(f, 0), 5)
}

// QualifyImageURL prefixes protocol-relative URLs ("//cdn/x.jpg") with https.
func QualifyImageURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// NewID synthesizes a placeholder id for records that arrive without one.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Normalize converts a raw listing into a Record. The platform argument is
// used when the raw record does not name its own. It returns false when the
// record has no title or no readable price.
func Normalize(raw Raw, platform string) (Record, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return Record{}, false
	}
	price, ok := ParsePrice(raw.Price)
	if !ok {
		return Record{}, false
	}
	if p := strings.TrimSpace(raw.Platform); p != "" {
		platform = p
	}
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = NewID("auto")
	}
	return Record{
		ID:          id,
		Title:       title,
		Price:       price,
		Platform:    platform,
		ImageURL:    QualifyImageURL(raw.Image),
		Link:        strings.TrimSpace(raw.Link),
		Rating:      ParseRating(raw.Rating),
		ReviewCount: ParseReviewCount(raw.Reviews),
	}, true
}
