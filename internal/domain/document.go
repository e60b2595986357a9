package domain

import "time"

// ResourceType classifies the kind of publication a document is.
type ResourceType string

const (
	ResourceAcademicArticle   ResourceType = "ACADEMIC_ARTICLE"
	ResourceNews              ResourceType = "NEWS"
	ResourceVideo             ResourceType = "VIDEO"
	ResourcePodcast           ResourceType = "PODCAST"
	ResourceJourneyMap        ResourceType = "JOURNEY_MAP"
	ResourceDiscussionBrief   ResourceType = "DISCUSSION_BRIEF"
	ResourceStories           ResourceType = "STORIES"
	ResourceWebinar           ResourceType = "WEBINAR"
	ResourceCaseStudy         ResourceType = "CASE_STUDY"
	ResourceFactsheet         ResourceType = "FACTSHEET"
	ResourceCountryActionPlan ResourceType = "COUNTRY_ACTION_PLAN"
	ResourceResearchReport    ResourceType = "RESEARCH_REPORT"
	ResourceToolkit           ResourceType = "TOOLKIT"
	ResourceJournalArticle    ResourceType = "JOURNAL_ARTICLE"
	ResourceFieldResearch     ResourceType = "FIELD_RESEARCH"
	ResourceMarketAssessments ResourceType = "MARKET_ASSESSMENTS"
	ResourceProgressReport    ResourceType = "PROGRESS_REPORT"
	ResourcePersona           ResourceType = "PERSONA"
	ResourceStrategyDocument  ResourceType = "STRATEGY_DOCUMENT"
	ResourcePolicyBrief       ResourceType = "POLICY_BRIEF"
	ResourceBlog              ResourceType = "BLOG"
)

var resourceTypes = map[ResourceType]struct{}{
	ResourceAcademicArticle: {}, ResourceNews: {}, ResourceVideo: {}, ResourcePodcast: {},
	ResourceJourneyMap: {}, ResourceDiscussionBrief: {}, ResourceStories: {}, ResourceWebinar: {},
	ResourceCaseStudy: {}, ResourceFactsheet: {}, ResourceCountryActionPlan: {},
	ResourceResearchReport: {}, ResourceToolkit: {}, ResourceJournalArticle: {},
	ResourceFieldResearch: {}, ResourceMarketAssessments: {}, ResourceProgressReport: {},
	ResourcePersona: {}, ResourceStrategyDocument: {}, ResourcePolicyBrief: {}, ResourceBlog: {},
}

// Valid reports whether r is one of the known resource types.
func (r ResourceType) Valid() bool {
	_, ok := resourceTypes[r]
	return ok
}

// Document is a research document in the local corpus.
// Title is the business key used for create-time deduplication.
type Document struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	Title         string        `gorm:"type:text;not null;uniqueIndex:idx_documents_title" json:"title"`
	Summary       string        `gorm:"type:text" json:"summary"`
	SourceURL     string        `gorm:"type:text;index:idx_documents_source_url" json:"source_url"`
	YearPublished *int          `gorm:"index:idx_documents_year" json:"year_published,omitempty"`
	ResourceType  *ResourceType `gorm:"type:text" json:"resource_type,omitempty"`
	Embedding     Vector        `gorm:"type:text" json:"-"`
	Tags          []Tag         `gorm:"-" json:"tags"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string {
	return "documents"
}

// HasEmbedding reports whether the document can take part in similarity ranking.
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// TagNames returns the names of the attached tags in their current order.
func (d *Document) TagNames() []string {
	names := make([]string, len(d.Tags))
	for i, t := range d.Tags {
		names[i] = t.Name
	}
	return names
}

// DocumentTag is the association row between a document and a tag.
type DocumentTag struct {
	DocumentID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID      uint `gorm:"primaryKey;autoIncrement:false;index:idx_document_tags_tag"`
}

// TableName returns the database table name for DocumentTag.
func (DocumentTag) TableName() string {
	return "document_tags"
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	Region       string
	Topic        string
	Year         *int
	Search       string
	ResourceType *ResourceType
	Skip         int
	Limit        int
	SortBy       string
	Order        string
}

// YearRange is the span of publication years in the corpus.
type YearRange struct {
	MinYear *int `json:"min_year"`
	MaxYear *int `json:"max_year"`
}
