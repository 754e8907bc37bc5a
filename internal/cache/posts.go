package cache

import (
	"time"

	"portal-rest-api/internal/model"
)

// Slot names.
const (
	SlotPublished = "published_posts"
	SlotPopular   = "popular_posts"
	SlotDetail    = "post_detail"
	SlotRelated   = "related_posts"
)

// ListKey is the single key used by list slots.
const ListKey = "all"

// PostTTLs holds the freshness window of each post slot.
type PostTTLs struct {
	Published time.Duration
	Popular   time.Duration
	Detail    time.Duration
	Related   time.Duration
}

// DefaultPostTTLs returns short windows for frequently changing lists and
// longer ones for detail and computed related views.
func DefaultPostTTLs() PostTTLs {
	return PostTTLs{
		Published: 2 * time.Minute,
		Popular:   5 * time.Minute,
		Detail:    10 * time.Minute,
		Related:   15 * time.Minute,
	}
}

// PostCaches groups the post slots. It is created once by the composition
// root and shared by pointer.
type PostCaches struct {
	Published *Slot[[]model.Post]
	Popular   *Slot[[]model.Post]
	Detail    *Slot[*model.Post]
	Related   *Slot[[]model.Post]
}

// NewPostCaches creates the post slots. now may be nil.
func NewPostCaches(ttls PostTTLs, now func() time.Time) *PostCaches {
	return &PostCaches{
		Published: NewSlot(SlotConfig[[]model.Post]{Name: SlotPublished, TTL: ttls.Published, IsEmpty: emptyList, Now: now}),
		Popular:   NewSlot(SlotConfig[[]model.Post]{Name: SlotPopular, TTL: ttls.Popular, IsEmpty: emptyList, Now: now}),
		Detail:    NewSlot(SlotConfig[*model.Post]{Name: SlotDetail, TTL: ttls.Detail, IsEmpty: nilPost, Now: now}),
		Related:   NewSlot(SlotConfig[[]model.Post]{Name: SlotRelated, TTL: ttls.Related, IsEmpty: emptyList, Now: now}),
	}
}

// InvalidatePost drops every entry a change to the post identified by slug
// could have affected. Related lists are dropped entirely since any post can
// appear in another post's related list.
func (c *PostCaches) InvalidatePost(slugs ...string) {
	c.Published.InvalidateAll()
	c.Popular.InvalidateAll()
	c.Related.InvalidateAll()
	for _, slug := range slugs {
		if slug != "" {
			c.Detail.Invalidate(slug)
		}
	}
}

// InvalidateAll clears every slot.
func (c *PostCaches) InvalidateAll() {
	c.Published.InvalidateAll()
	c.Popular.InvalidateAll()
	c.Detail.InvalidateAll()
	c.Related.InvalidateAll()
}

// Sizes reports the entry count of each slot.
func (c *PostCaches) Sizes() map[string]int {
	return map[string]int{
		SlotPublished: c.Published.Len(),
		SlotPopular:   c.Popular.Len(),
		SlotDetail:    c.Detail.Len(),
		SlotRelated:   c.Related.Len(),
	}
}

func emptyList(posts []model.Post) bool {
	return len(posts) == 0
}

func nilPost(post *model.Post) bool {
	return post == nil
}
