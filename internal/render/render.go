// Package render maps moderation queue items to Discord embed payloads.
package render

import (
	"strings"

	"modqueue_bot/internal/discord"
	"modqueue_bot/internal/model"
)

// Discord-facing length bounds. Lines and blocks are truncated to exactly
// these limits, never expanded.
const (
	MaxTitleLen      = 250
	MaxContentLen    = 3000
	MaxReasonLineLen = 250
	MaxReasonsLen    = 1000
)

// Embed colors. Posts and comments carry distinct normal colors; a removal
// signal escalates either to ColorRemoved.
const (
	ColorPost    = 0x00BCD4
	ColorComment = 0xEEEEEE
	ColorRemoved = 0xD32F2F
)

// reasonsFieldName is the embed field holding the concatenated reason block.
// ApplyUpdates locates the field by this name when patching.
const reasonsFieldName = "Reasons"

// Item renders a queue item and its pending updates into a webhook message.
func Item(item model.QueueItem, updates []model.UpdateEvent) *discord.Message {
	embed := discord.Embed{
		Title:  truncate(title(item), MaxTitleLen),
		URL:    permalink(item),
		Author: &discord.Author{Name: "u/" + item.Author},
		Color:  color(item, updates),
	}

	if item.Kind == model.KindComment || item.IsSelf {
		embed.Description = truncate(item.Body, MaxContentLen)
	}

	if block := reasonBlock(item.Reasons, updates); block != "" {
		embed.Fields = append(embed.Fields, discord.Field{
			Name:  reasonsFieldName,
			Value: block,
		})
	}

	if url := mediaURL(item); url != "" {
		embed.Thumbnail = &discord.Thumbnail{URL: url}
	}

	return &discord.Message{Embeds: []discord.Embed{embed}}
}

// ApplyUpdates merges pending updates into an already-sent message: update
// reasons are appended to the existing reason block (prior reasons are kept),
// and a removal signal escalates the embed color. Reports whether the message
// changed.
func ApplyUpdates(msg *discord.Message, updates []model.UpdateEvent) bool {
	if len(msg.Embeds) == 0 || len(updates) == 0 {
		return false
	}
	embed := &msg.Embeds[0]
	changed := false

	var lines []string
	for _, u := range updates {
		if u.Reason != "" {
			lines = append(lines, truncate(u.Reason, MaxReasonLineLen))
		}
		if u.Removed && embed.Color != ColorRemoved {
			embed.Color = ColorRemoved
			changed = true
		}
	}

	if len(lines) > 0 {
		appended := strings.Join(lines, "\n")
		field := reasonsField(embed)
		if field.Value == "" {
			field.Value = truncate(appended, MaxReasonsLen)
		} else {
			field.Value = truncate(field.Value+"\n"+appended, MaxReasonsLen)
		}
		changed = true
	}

	return changed
}

func title(item model.QueueItem) string {
	if item.Kind == model.KindComment {
		return "Comment by " + item.Author
	}
	if !item.IsSelf && item.Domain != "" {
		return item.Title + " (" + item.Domain + ")"
	}
	return item.Title
}

func permalink(item model.QueueItem) string {
	if item.Kind == model.KindPost {
		return "https://redd.it/" + item.ID
	}
	return "https://reddit.com" + item.Permalink
}

func color(item model.QueueItem, updates []model.UpdateEvent) int {
	if item.Removed {
		return ColorRemoved
	}
	for _, u := range updates {
		if u.Removed {
			return ColorRemoved
		}
	}
	if item.Kind == model.KindComment {
		return ColorComment
	}
	return ColorPost
}

// reasonBlock concatenates intrinsic report lines with update reasons, in that
// order, applying per-line and whole-block bounds.
func reasonBlock(intrinsic []string, updates []model.UpdateEvent) string {
	var lines []string
	for _, r := range intrinsic {
		lines = append(lines, truncate(r, MaxReasonLineLen))
	}
	for _, u := range updates {
		if u.Reason != "" {
			lines = append(lines, truncate(u.Reason, MaxReasonLineLen))
		}
	}
	return truncate(strings.Join(lines, "\n"), MaxReasonsLen)
}

// mediaURL picks the attachment by fixed preference: static thumbnail, then
// video scrubber frame, then first gallery image.
func mediaURL(item model.QueueItem) string {
	if item.ThumbnailURL != "" {
		return item.ThumbnailURL
	}
	if item.VideoThumbnailURL != "" {
		return item.VideoThumbnailURL
	}
	if len(item.GalleryImageURLs) > 0 {
		return item.GalleryImageURLs[0]
	}
	return ""
}

func reasonsField(embed *discord.Embed) *discord.Field {
	for i := range embed.Fields {
		if embed.Fields[i].Name == reasonsFieldName {
			return &embed.Fields[i]
		}
	}
	embed.Fields = append(embed.Fields, discord.Field{Name: reasonsFieldName})
	return &embed.Fields[len(embed.Fields)-1]
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
