package reddit

import (
	"encoding/json"
	"fmt"

	"modqueue_bot/internal/model"
)

// Thing kind prefixes used by the listing API and in feed entry IDs.
const (
	kindComment = "t1"
	kindPost    = "t3"
)

type listing struct {
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string    `json:"kind"`
	Data thingData `json:"data"`
}

// thingData covers the overlapping fields of t1 (comment) and t3 (post)
// entries. Reports arrive as [reason, reporter] pairs for mod reports and
// [reason, count] pairs for user reports.
type thingData struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	SelfText          string          `json:"selftext"`
	Body              string          `json:"body"`
	Author            string          `json:"author"`
	Domain            string          `json:"domain"`
	IsSelf            bool            `json:"is_self"`
	IsVideo           bool            `json:"is_video"`
	Permalink         string          `json:"permalink"`
	Thumbnail         string          `json:"thumbnail"`
	RemovedByCategory string          `json:"removed_by_category"`
	BannedBy          json.RawMessage `json:"banned_by"`
	ModReports        [][]any         `json:"mod_reports"`
	UserReports       [][]any         `json:"user_reports"`

	Preview struct {
		Images []struct {
			Source      imageRef   `json:"source"`
			Resolutions []imageRef `json:"resolutions"`
		} `json:"images"`
	} `json:"preview"`

	GalleryData struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`

	MediaMetadata map[string]struct {
		Previews []struct {
			URL string `json:"u"`
		} `json:"p"`
	} `json:"media_metadata"`
}

type imageRef struct {
	URL string `json:"url"`
}

func (t thing) toQueueItem() (model.QueueItem, error) {
	d := t.Data

	item := model.QueueItem{
		ID:        d.ID,
		Author:    d.Author,
		Permalink: d.Permalink,
		Removed:   d.removed(),
		Reasons:   d.reportLines(),
	}

	switch t.Kind {
	case kindPost:
		item.Kind = model.KindPost
		item.Title = d.Title
		item.Body = d.SelfText
		item.Domain = d.Domain
		item.IsSelf = d.IsSelf
		d.fillMedia(&item)
	case kindComment:
		item.Kind = model.KindComment
		item.Body = d.Body
		item.IsSelf = true
	default:
		return model.QueueItem{}, fmt.Errorf("unsupported thing kind %q", t.Kind)
	}

	return item, nil
}

// removed reports whether the item itself already carries a removal state.
func (d thingData) removed() bool {
	if d.RemovedByCategory != "" {
		return true
	}
	var bannedBy string
	if err := json.Unmarshal(d.BannedBy, &bannedBy); err == nil && bannedBy != "" {
		return true
	}
	return false
}

// reportLines flattens mod reports then user reports into "reporter: reason"
// lines.
func (d thingData) reportLines() []string {
	var lines []string
	for _, r := range append(append([][]any{}, d.ModReports...), d.UserReports...) {
		if len(r) < 2 {
			continue
		}
		reason, ok := r[0].(string)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%v: %s", r[1], reason))
	}
	return lines
}

// fillMedia populates the media candidates for a post. Self posts carry no
// media.
func (d thingData) fillMedia(item *model.QueueItem) {
	if d.IsSelf {
		return
	}

	if len(d.Preview.Images) > 0 {
		img := d.Preview.Images[0]
		if d.IsVideo {
			if img.Source.URL != "" {
				item.VideoThumbnailURL = img.Source.URL
			}
		} else if len(img.Resolutions) > 0 {
			item.ThumbnailURL = img.Resolutions[0].URL
		}
	}

	for _, g := range d.GalleryData.Items {
		meta, ok := d.MediaMetadata[g.MediaID]
		if !ok || len(meta.Previews) == 0 {
			continue
		}
		item.GalleryImageURLs = append(item.GalleryImageURLs, meta.Previews[0].URL)
	}
}
