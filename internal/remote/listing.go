package remote

import (
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"mirrorsync/internal/domain"
)

// Entry is one row of a directory listing page
type Entry struct {
	// Name is a single path segment, percent-decoding already applied
	Name string

	// Dir is true when the entry is a subdirectory
	Dir bool

	// Size in bytes, domain.SizeUnknown when the listing shows no exact
	// byte count (humanized sizes are not trusted for verification)
	Size int64
}

// ParseListing extracts (name, kind) entries from an archive directory
// listing page. Rows are identified by the index table's link cells;
// an adjacent size cell, when it holds a plain byte count, becomes the
// entry's size hint. Entries with unsafe names (embedded separators,
// relative segments) are dropped.
func ParseListing(r io.Reader) ([]Entry, error) {
	var (
		entries  []Entry
		depth    int  // nesting depth inside a link cell, 0 = outside
		sizeCell int  // nesting depth inside a size cell, 0 = outside
		rowOK    bool // current row's anchor produced an entry
	)

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return entries, nil
			}
			return nil, z.Err()

		case html.StartTagToken:
			tok := z.Token()
			switch tok.Data {
			case "td":
				switch cellClass(tok) {
				case "link":
					depth = 1
					rowOK = false
				case "size":
					sizeCell = 1
				}
			case "a":
				if depth == 1 {
					if name, dir, ok := entryFromAnchor(tok); ok {
						entries = append(entries, Entry{Name: name, Dir: dir, Size: domain.SizeUnknown})
						rowOK = true
					}
				}
				if depth > 0 {
					depth++
				}
			default:
				if depth > 0 {
					depth++
				}
				if sizeCell > 0 {
					sizeCell++
				}
			}

		case html.EndTagToken:
			tok := z.Token()
			if depth > 0 {
				if tok.Data == "td" && depth == 1 {
					depth = 0
				} else {
					depth--
				}
			}
			if sizeCell > 0 {
				if tok.Data == "td" && sizeCell == 1 {
					sizeCell = 0
				} else {
					sizeCell--
				}
			}

		case html.TextToken:
			// Sizes belong to the entry from the same row; a rejected
			// anchor must not donate its size cell to the previous entry.
			if sizeCell > 0 && rowOK && len(entries) > 0 {
				if size, ok := parseExactSize(string(z.Text())); ok {
					entries[len(entries)-1].Size = size
				}
			}
		}
	}
}

// cellClass returns the class attribute of a td token
func cellClass(tok html.Token) string {
	for _, attr := range tok.Attr {
		if attr.Key == "class" {
			return attr.Val
		}
	}
	return ""
}

// entryFromAnchor decodes an anchor href into a listing entry
func entryFromAnchor(tok html.Token) (name string, dir bool, ok bool) {
	var href string
	for _, attr := range tok.Attr {
		if attr.Key == "href" {
			href = attr.Val
			break
		}
	}
	if href == "" {
		return "", false, false
	}

	decoded, err := url.PathUnescape(href)
	if err != nil {
		return "", false, false
	}

	dir = strings.HasSuffix(decoded, "/")
	name = strings.TrimSuffix(decoded, "/")

	if !validSegment(name) {
		return "", false, false
	}
	return name, dir, true
}

// validSegment rejects names that are not a single safe path segment
func validSegment(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	if strings.HasPrefix(name, "?") || strings.Contains(name, "://") {
		return false
	}
	return true
}

// parseExactSize accepts only plain byte counts. Humanized values like
// "1.4 MiB" round away precision the pipeline needs for verification,
// so they are ignored.
func parseExactSize(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return 0, false
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
