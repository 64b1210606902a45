package slack

import (
	"strings"

	"github.com/slack-go/slack"
)

// extractMessageText turns a Slack message into the query text. Forwarded
// alerts and bot posts often carry their content in attachments, blocks or
// files instead of Text, so those are tried in that order.
func extractMessageText(msg slack.Msg) string {
	if strings.TrimSpace(msg.Text) != "" {
		return msg.Text
	}

	if text := extractAttachments(msg.Attachments); text != "" {
		return text
	}

	if text := strings.Join(extractBlocks(msg.Blocks.BlockSet), "\n"); text != "" {
		return text
	}

	var files []string
	for _, f := range msg.Files {
		name := f.Title
		if name == "" {
			name = f.Name
		}
		if name != "" {
			files = append(files, "[File: "+name+"]")
		}
	}
	return strings.Join(files, "\n")
}

func extractAttachments(attachments []slack.Attachment) string {
	var parts []string
	for _, a := range attachments {
		before := len(parts)
		for _, s := range []string{a.Pretext, a.Title, a.Text} {
			if s != "" {
				parts = append(parts, s)
			}
		}
		for _, f := range a.Fields {
			switch {
			case f.Title != "" && f.Value != "":
				parts = append(parts, f.Title+": "+f.Value)
			case f.Value != "":
				parts = append(parts, f.Value)
			}
		}
		if len(parts) == before && a.Fallback != "" {
			parts = append(parts, a.Fallback)
		}
	}
	return strings.Join(parts, "\n")
}

func extractBlocks(blocks []slack.Block) []string {
	var parts []string
	for _, b := range blocks {
		switch block := b.(type) {
		case *slack.HeaderBlock:
			if block.Text != nil && block.Text.Text != "" {
				parts = append(parts, block.Text.Text)
			}
		case *slack.SectionBlock:
			if block.Text != nil && block.Text.Text != "" {
				parts = append(parts, block.Text.Text)
			}
			for _, f := range block.Fields {
				if f != nil && f.Text != "" {
					parts = append(parts, f.Text)
				}
			}
		case *slack.RichTextBlock:
			parts = append(parts, extractRichTextBlock(block)...)
		}
	}
	return parts
}

// extractRichTextBlock renders a rich text block as one string per element:
// list items get "- ", quotes "> " and preformatted text a code fence.
func extractRichTextBlock(block *slack.RichTextBlock) []string {
	parts := []string{}
	for _, el := range block.Elements {
		parts = append(parts, richTextElement(el)...)
	}
	return parts
}

func richTextElement(el slack.RichTextElement) []string {
	switch e := el.(type) {
	case *slack.RichTextSection:
		return nonEmpty(sectionText(e.Elements))
	case slack.RichTextSection:
		return nonEmpty(sectionText(e.Elements))
	case *slack.RichTextQuote:
		if text := sectionText(e.Elements); text != "" {
			return []string{"> " + text}
		}
	case *slack.RichTextPreformatted:
		if text := sectionText(e.Elements); text != "" {
			return []string{"```\n" + text + "\n```"}
		}
	case *slack.RichTextList:
		return listItems(e.Elements)
	case slack.RichTextList:
		return listItems(e.Elements)
	}
	return nil
}

func listItems(elements []slack.RichTextElement) []string {
	var items []string
	for _, item := range elements {
		for _, text := range richTextElement(item) {
			items = append(items, "- "+text)
		}
	}
	return items
}

func sectionText(elements []slack.RichTextSectionElement) string {
	var sb strings.Builder
	for _, el := range elements {
		switch e := el.(type) {
		case *slack.RichTextSectionTextElement:
			sb.WriteString(e.Text)
		case slack.RichTextSectionTextElement:
			sb.WriteString(e.Text)
		case *slack.RichTextSectionLinkElement:
			sb.WriteString(linkText(e.Text, e.URL))
		case slack.RichTextSectionLinkElement:
			sb.WriteString(linkText(e.Text, e.URL))
		}
	}
	return sb.String()
}

func linkText(text, url string) string {
	if text != "" {
		return text
	}
	return url
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
