// Package post holds the payload shapes shared by the composer, the
// reconstructor and storage: the post itself, its annotations, link
// entities and thumbnails.
package post

const (
	AnnotationCrossPost = "net.app.core.crosspost"
	AnnotationOembed    = "net.app.core.oembed"
	AnnotationMetadata  = "net.app.core.broadcast.message.metadata"
	AnnotationLanguage  = "net.app.core.language"
	AnnotationAuthor    = "net.app.rssposter.item.author"
	AnnotationTags      = "net.app.rssposter.item.tags"
)

const (
	MinImageDimension = 200
	MaxImageDimension = 1000
)

type Post struct {
	Text        string       `json:"text,omitempty"`
	Annotations []Annotation `json:"annotations"`
	Entities    *Entities    `json:"entities,omitempty"`
	MachineOnly bool         `json:"machine_only,omitempty"`
}

type Annotation struct {
	Type  string         `json:"type"`
	Value map[string]any `json:"value"`
}

type Entities struct {
	Links []LinkEntity `json:"links"`
}

// LinkEntity marks Text[Pos:Pos+Len] (in characters) as a link to URL.
type LinkEntity struct {
	URL  string `json:"url"`
	Text string `json:"text"`
	Pos  int    `json:"pos"`
	Len  int    `json:"len"`
}

type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Fits reports whether both dimensions are present and inside the accepted
// thumbnail bounds.
func Fits(width, height int) bool {
	return width >= MinImageDimension && width <= MaxImageDimension &&
		height >= MinImageDimension && height <= MaxImageDimension
}

func (t Thumbnail) Valid() bool {
	return t.URL != "" && Fits(t.Width, t.Height)
}

// Links returns the link entities, or nil when the post carries none.
func (p Post) Links() []LinkEntity {
	if p.Entities == nil {
		return nil
	}
	return p.Entities.Links
}
