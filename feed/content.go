package feed

import (
	"html"
	"regexp"
	"strings"
)

// TokenKind is the kind of media a content token embeds.
type TokenKind string

// Media token kinds.
const (
	TokenImage  TokenKind = "IMAGE"
	TokenVideo  TokenKind = "VIDEO"
	TokenIframe TokenKind = "IFRAME"
)

// ContentToken is an embedded media reference such as [IMAGE: /media/cat.png].
type ContentToken struct {
	Kind TokenKind
	URL  string
}

// Segment is either a run of text or an embedded media token.
type Segment struct {
	Text  string
	Token *ContentToken
}

var contentTokenPattern = regexp.MustCompile(`\[(IMAGE|VIDEO|IFRAME):\s*([^\]]+)\]`)

// ParseContent splits post content into text and media segments, in order.
// Empty text segments are omitted.
func ParseContent(content string) []Segment {
	var segments []Segment

	last := 0

	for _, match := range contentTokenPattern.FindAllStringSubmatchIndex(content, -1) {
		if match[0] > last {
			segments = append(segments, Segment{Text: content[last:match[0]]})
		}

		segments = append(segments, Segment{
			Token: &ContentToken{
				Kind: TokenKind(content[match[2]:match[3]]),
				URL:  strings.TrimSpace(content[match[4]:match[5]]),
			},
		})

		last = match[1]
	}

	if last < len(content) {
		segments = append(segments, Segment{Text: content[last:]})
	}

	return segments
}

// ContentTokens returns the media tokens of post content.
func ContentTokens(content string) []ContentToken {
	var tokens []ContentToken

	for _, segment := range ParseContent(content) {
		if segment.Token != nil {
			tokens = append(tokens, *segment.Token)
		}
	}

	return tokens
}

// RenderHTML replaces media tokens with the HTML elements that display them.
// Text outside tokens is left untouched.
func RenderHTML(content string) string {
	var b strings.Builder

	for _, segment := range ParseContent(content) {
		if segment.Token == nil {
			b.WriteString(segment.Text)

			continue
		}

		src := html.EscapeString(segment.Token.URL)

		switch segment.Token.Kind {
		case TokenImage:
			b.WriteString(`<img src="` + src + `" alt="post image" class="content-image" />`)
		case TokenVideo:
			b.WriteString(`<video controls class="content-video"><source src="` + src + `" type="video/mp4" /></video>`)
		case TokenIframe:
			b.WriteString(`<iframe src="` + src + `" class="content-iframe" frameborder="0" allowfullscreen></iframe>`)
		}
	}

	return b.String()
}

// ImageToken formats the token embedding an uploaded image into post content.
func ImageToken(url string) string {
	return "[IMAGE: " + url + "]"
}
