package brew

import "time"

// SourceType records where a draft's outline came from.
type SourceType string

const (
	SourceTopic  SourceType = "topic"
	SourcePaste  SourceType = "paste"
	SourceImport SourceType = "import"
)

// Outline is the structured plan produced by the outline stage or edited by
// the user in the outline-first flow.
type Outline struct {
	Title   string         `json:"title" bson:"title"`
	Summary string         `json:"summary,omitempty" bson:"summary,omitempty"`
	Slides  []OutlineSlide `json:"slides" bson:"slides"`
}

// OutlineSlide is one ordered stub of an outline.
type OutlineSlide struct {
	SlideNumber int      `json:"slideNumber,omitempty" bson:"slideNumber,omitempty"`
	Title       string   `json:"title" bson:"title"`
	Type        string   `json:"type,omitempty" bson:"type,omitempty"`
	KeyPoints   []string `json:"keyPoints" bson:"keyPoints"`
}

// Brand carries the styling hints passed to slide generation.
type Brand struct {
	ID             string `json:"id,omitempty" bson:"id,omitempty"`
	Name           string `json:"name,omitempty" bson:"name,omitempty"`
	PrimaryColor   string `json:"primary_color,omitempty" bson:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty" bson:"secondaryColor,omitempty"`
	FontHeading    string `json:"font_heading,omitempty" bson:"fontHeading,omitempty"`
	FontBody       string `json:"font_body,omitempty" bson:"fontBody,omitempty"`
}

// ThemeStyle is a snapshot of the theme palette/typography selected for a draft.
type ThemeStyle struct {
	Colors     map[string]string `json:"colors,omitempty" bson:"colors,omitempty"`
	Typography map[string]string `json:"typography,omitempty" bson:"typography,omitempty"`
}

// OutlineDraft is a work-in-progress presentation plan.
type OutlineDraft struct {
	ID              string      `json:"id" bson:"_id"`
	WorkspaceID     string      `json:"workspaceId" bson:"workspaceId"`
	ProjectID       string      `json:"projectId,omitempty" bson:"projectId,omitempty"`
	CreatedBy       string      `json:"createdBy" bson:"createdBy"`
	Topic           string      `json:"topic" bson:"topic"`
	Outline         *Outline    `json:"outline,omitempty" bson:"outline,omitempty"`
	ThemeID         string      `json:"themeId,omitempty" bson:"themeId,omitempty"`
	Theme           *ThemeStyle `json:"theme,omitempty" bson:"theme,omitempty"`
	BrandID         string      `json:"brandId,omitempty" bson:"brandId,omitempty"`
	Brand           *Brand      `json:"brand,omitempty" bson:"brand,omitempty"`
	SourceType      SourceType  `json:"sourceType" bson:"sourceType"`
	SourceContent   string      `json:"sourceContent,omitempty" bson:"sourceContent,omitempty"`
	SourceObjectKey string      `json:"sourceObjectKey,omitempty" bson:"sourceObjectKey,omitempty"`
	CurrentStep     int         `json:"currentStep" bson:"currentStep"`
	Status          DraftStatus `json:"status" bson:"status"`
	PresentationID  string      `json:"presentationId,omitempty" bson:"presentationId,omitempty"`
	CreatedAt       time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt" bson:"updatedAt"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	DeletedAt       *time.Time  `json:"deletedAt,omitempty" bson:"deletedAt,omitempty"`
}

// Deleted reports whether the draft was soft deleted.
func (d *OutlineDraft) Deleted() bool { return d.DeletedAt != nil }

// Slide is one generated slide. Numbers are dense and 1-based.
type Slide struct {
	Number       int         `json:"slideNumber" bson:"slideNumber"`
	Title        string      `json:"title" bson:"title"`
	Content      string      `json:"content" bson:"content"`
	ContentHTML  string      `json:"contentHtml,omitempty" bson:"contentHtml,omitempty"`
	Layout       string      `json:"layout" bson:"layout"`
	Theme        *ThemeStyle `json:"theme,omitempty" bson:"theme,omitempty"`
	DesignNotes  string      `json:"designNotes,omitempty" bson:"designNotes,omitempty"`
	SpeakerNotes string      `json:"speakerNotes,omitempty" bson:"speakerNotes,omitempty"`
	Placeholder  bool        `json:"placeholder,omitempty" bson:"placeholder,omitempty"`
}

const PresentationStatusDraft = "draft"

// Presentation is the finished artifact of one generation run.
type Presentation struct {
	ID             string    `json:"id" bson:"_id"`
	WorkspaceID    string    `json:"workspaceId" bson:"workspaceId"`
	ProjectID      string    `json:"projectId,omitempty" bson:"projectId,omitempty"`
	BrandID        string    `json:"brandId,omitempty" bson:"brandId,omitempty"`
	Title          string    `json:"title" bson:"title"`
	Description    string    `json:"description" bson:"description"`
	Slides         []Slide   `json:"slides" bson:"slides"`
	SlideCount     int       `json:"slideCount" bson:"slideCount"`
	Status         string    `json:"status" bson:"status"`
	CreatedBy      string    `json:"createdBy" bson:"createdBy"`
	OutlineDraftID string    `json:"outlineDraftId,omitempty" bson:"outlineDraftId,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Usage is a workspace's consumption within one billing period.
type Usage struct {
	Slides        int
	Presentations int
}

// PeriodStart returns the first instant of the calendar month containing t (UTC).
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
