// Package compose builds the rich-text body of a news post.
package compose

import "unicode/utf8"

const (
	// MaxTitleRunes is the longest title kept verbatim.
	MaxTitleRunes = 200
	ellipsis      = "..."
)

// LinkFacet marks the UTF-8 byte range [ByteStart, ByteEnd) of Text as a link to URI.
type LinkFacet struct {
	ByteStart int
	ByteEnd   int
	URI       string
}

// RichText is post text plus its link annotations.
type RichText struct {
	Text  string
	Links []LinkFacet
}

// TruncateTitle keeps the first MaxTitleRunes characters of title and appends "..." when it is longer.
func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= MaxTitleRunes {
		return title
	}
	runes := []rune(title)
	return string(runes[:MaxTitleRunes]) + ellipsis
}

// Compose renders title as a link to url, then a line break, the provider time string and a
// trailing space. title is used as given; callers truncate first.
func Compose(title, url, publishedTime string) RichText {
	text := title + "\n" + publishedTime + " "
	return RichText{
		Text:  text,
		Links: []LinkFacet{{ByteStart: 0, ByteEnd: len(title), URI: url}},
	}
}
