package domain

import (
	"strings"
	"time"
)

// TagCategory is the closed set of taxonomy categories.
type TagCategory string

const (
	TagCategoryRegion           TagCategory = "region"
	TagCategoryTopic            TagCategory = "topic"
	TagCategoryTechnology       TagCategory = "technology"
	TagCategoryFramework        TagCategory = "framework"
	TagCategoryCountry          TagCategory = "country"
	TagCategoryProductLifecycle TagCategory = "product_lifecycle"
	TagCategoryCustomerJourney  TagCategory = "customer_journey"
	TagCategoryUnknown          TagCategory = "unknown"
)

// TagCategories lists every category in classification order.
var TagCategories = []TagCategory{
	TagCategoryRegion,
	TagCategoryTopic,
	TagCategoryTechnology,
	TagCategoryFramework,
	TagCategoryCountry,
	TagCategoryProductLifecycle,
	TagCategoryCustomerJourney,
	TagCategoryUnknown,
}

// ParseTagCategory maps a raw string to a TagCategory. Hyphenated spellings
// such as "product-lifecycle" are accepted. Unknown values map to unknown.
func ParseTagCategory(s string) TagCategory {
	normalized := TagCategory(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, c := range TagCategories {
		if c == normalized {
			return c
		}
	}
	return TagCategoryUnknown
}

// Tag is a taxonomy entry. Name is globally unique.
type Tag struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Name      string      `gorm:"type:text;not null;uniqueIndex:idx_tags_name" json:"name"`
	Category  TagCategory `gorm:"type:text;not null;default:unknown;index:idx_tags_category" json:"category"`
	Embedding Vector      `gorm:"type:text" json:"-"`
	CreatedAt time.Time   `json:"-"`
	UpdatedAt time.Time   `json:"-"`
}

// TableName returns the database table name for Tag.
func (Tag) TableName() string {
	return "tags"
}

// TagRef is the lightweight tag shape attached to search results.
type TagRef struct {
	ID       uint        `json:"id,omitempty"`
	Name     string      `json:"name"`
	Category TagCategory `json:"category"`
}

// RefsOf converts tags to their reference form.
func RefsOf(tags []Tag) []TagRef {
	refs := make([]TagRef, len(tags))
	for i, t := range tags {
		refs[i] = TagRef{ID: t.ID, Name: t.Name, Category: t.Category}
	}
	return refs
}

// WhitelistedDomain is a domain eligible for external-search trust elevation.
type WhitelistedDomain struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Domain    string    `gorm:"type:text;not null;uniqueIndex:idx_whitelisted_domains_domain" json:"domain"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for WhitelistedDomain.
func (WhitelistedDomain) TableName() string {
	return "whitelisted_domains"
}
