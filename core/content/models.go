package content

import "github.com/eduprohq/edupro/core"

// Resource types
const (
	ResourcePDF   = "pdf"
	ResourceVideo = "video"
)

type (
	// Post is a feed entry at posts/{id}.
	Post struct {
		ID         string     `json:"id"`
		Title      string     `json:"title"`
		Content    string     `json:"content"`
		Category   string     `json:"category"`
		Grade      core.Grade `json:"grade"`
		ImageURL   string     `json:"imageUrl,omitempty"`
		YoutubeURL string     `json:"youtubeUrl,omitempty"`
		Timestamp  int64      `json:"timestamp"`
	}

	// Resource is a library entry (PDF or video) at resources/{id}.
	Resource struct {
		ID        string     `json:"id"`
		Title     string     `json:"title"`
		Type      string     `json:"type"`
		Grade     core.Grade `json:"grade"`
		URL       string     `json:"url"`
		Timestamp int64      `json:"timestamp"`
	}

	// SubjectiveQuestion is a written-answer prompt at subjective_questions/{id}.
	SubjectiveQuestion struct {
		ID          string           `json:"id"`
		Title       string           `json:"title"`
		Content     string           `json:"content"`
		ContentType core.ContentType `json:"contentType"`
		Grade       core.Grade       `json:"grade"`
		ImageURL    string           `json:"imageUrl,omitempty"`
		Timestamp   int64            `json:"timestamp"`
	}

	// Notice is a short announcement at notices/{id}.
	Notice struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		Timestamp int64  `json:"timestamp"`
	}

	// AppConfig is the singleton at config: the marquee notice plus the
	// payment numbers the wallet page shows. Readable by any authenticated
	// user, writable by admins.
	AppConfig struct {
		MarqueeNotice string `json:"marqueeNotice"`
		BkashNumber   string `json:"bkashNumber"`
		NagadNumber   string `json:"nagadNumber"`
	}
)

type NewPost struct {
	Title      string     `json:"title" validate:"required"`
	Content    string     `json:"content" validate:"required"`
	Category   string     `json:"category" validate:"required"`
	Grade      core.Grade `json:"grade" validate:"required,grade"`
	ImageURL   string     `json:"imageUrl" validate:"omitempty,url"`
	YoutubeURL string     `json:"youtubeUrl" validate:"omitempty,url"`
}

func (np *NewPost) Validate(svc *Service) error {
	np.Title = core.CleanString(np.Title)
	np.Category = core.CleanString(np.Category)
	return svc.validate.Struct(np)
}

type NewResource struct {
	Title string     `json:"title" validate:"required"`
	Type  string     `json:"type" validate:"required,oneof=pdf video"`
	Grade core.Grade `json:"grade" validate:"required,grade"`
	URL   string     `json:"url" validate:"required,url"`
}

func (nr *NewResource) Validate(svc *Service) error {
	nr.Title = core.CleanString(nr.Title)
	return svc.validate.Struct(nr)
}

type NewSubjectiveQuestion struct {
	Title       string           `json:"title" validate:"required"`
	Content     string           `json:"content" validate:"required"`
	ContentType core.ContentType `json:"contentType" validate:"required,contenttype"`
	Grade       core.Grade       `json:"grade" validate:"required,grade"`
	ImageURL    string           `json:"imageUrl" validate:"omitempty,url"`
}

func (nq *NewSubjectiveQuestion) Validate(svc *Service) error {
	nq.Title = core.CleanString(nq.Title)
	return svc.validate.Struct(nq)
}

type NewNotice struct {
	Text string `json:"text" validate:"required"`
}

func (nn *NewNotice) Validate(svc *Service) error {
	nn.Text = core.CleanString(nn.Text)
	return svc.validate.Struct(nn)
}

// QueryFilter composes pure predicates by AND: exact grade, exact type
// (resources only) and a case-insensitive substring match on title/content.
type QueryFilter struct {
	Grade  core.Grade `query:"grade"`
	Type   string     `query:"type"`
	Search string     `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Type = core.CleanString(qf.Type, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}
