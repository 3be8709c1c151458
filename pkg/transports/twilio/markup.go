package twilio

import (
	"strconv"
	"strings"

	"github.com/harunnryd/sampark/pkg/transports"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// Markup renders TwiML documents.
type Markup struct{}

func (Markup) ContentType() string { return "text/xml" }

func (Markup) Gather(audioURLs []string, g transports.Gather) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<Response>")
	writePlays(&b, audioURLs)
	b.WriteString(`<Gather input="speech"`)
	writeAttr(&b, "language", g.Language)
	if g.TimeoutS > 0 {
		writeAttr(&b, "timeout", strconv.Itoa(g.TimeoutS))
	}
	writeAttr(&b, "speechTimeout", g.SpeechTimeout)
	if g.PartialURL != "" {
		writeAttr(&b, "partialResultCallback", g.PartialURL)
		writeAttr(&b, "partialResultCallbackMethod", "POST")
	}
	writeAttr(&b, "action", g.ActionURL)
	writeAttr(&b, "method", "POST")
	writeAttr(&b, "actionOnEmptyResult", "true")
	b.WriteString("/></Response>")
	return b.String()
}

func (Markup) Hangup(audioURLs []string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<Response>")
	writePlays(&b, audioURLs)
	b.WriteString("<Hangup/></Response>")
	return b.String()
}

func writePlays(b *strings.Builder, audioURLs []string) {
	for _, u := range audioURLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		b.WriteString("<Play>")
		b.WriteString(xmlEscape(u))
		b.WriteString("</Play>")
	}
}

func writeAttr(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(xmlEscape(value))
	b.WriteByte('"')
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}
