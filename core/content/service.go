// Package content manages the portal's feed, library, subjective question
// bank, notices and the app configuration singleton. Lists materialize the
// store's key→value maps into id-tagged slices, newest first, with filters
// recomputed per snapshot.
package content

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/storage/store"
)

type Service struct {
	store    store.Store
	validate *validator.Validate
}

func NewService(st store.Store, validate *validator.Validate) *Service {
	return &Service{store: st, validate: validate}
}

// Posts

func (svc *Service) CreatePost(ctx context.Context, np NewPost) (Post, error) {
	if err := np.Validate(svc); err != nil {
		return Post{}, err
	}
	post := Post{
		Title:      np.Title,
		Content:    np.Content,
		Category:   np.Category,
		Grade:      np.Grade,
		ImageURL:   np.ImageURL,
		YoutubeURL: np.YoutubeURL,
		Timestamp:  core.NowMillis(),
	}
	id, err := svc.store.Push(ctx, "posts", post)
	if err != nil {
		return Post{}, err
	}
	post.ID = id
	return post, nil
}

func (svc *Service) DeletePost(ctx context.Context, id string) error {
	return svc.store.Delete(ctx, store.JoinPath("posts", id))
}

func (svc *Service) ListPosts(ctx context.Context, qf QueryFilter) ([]Post, error) {
	qf.Clean()
	entries, err := svc.collection(ctx, "posts")
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(entries))
	for id, entry := range entries {
		var p Post
		if _, err = store.Decode(entry, &p); err != nil {
			return nil, err
		}
		p.ID = id
		if qf.Grade != "" && p.Grade != qf.Grade {
			continue
		}
		if !matchesSearch(qf.Search, p.Title, p.Content) {
			continue
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Timestamp > posts[j].Timestamp })
	return posts, nil
}

// Resources

func (svc *Service) CreateResource(ctx context.Context, nr NewResource) (Resource, error) {
	if err := nr.Validate(svc); err != nil {
		return Resource{}, err
	}
	res := Resource{
		Title:     nr.Title,
		Type:      nr.Type,
		Grade:     nr.Grade,
		URL:       nr.URL,
		Timestamp: core.NowMillis(),
	}
	id, err := svc.store.Push(ctx, "resources", res)
	if err != nil {
		return Resource{}, err
	}
	res.ID = id
	return res, nil
}

func (svc *Service) DeleteResource(ctx context.Context, id string) error {
	return svc.store.Delete(ctx, store.JoinPath("resources", id))
}

func (svc *Service) ListResources(ctx context.Context, qf QueryFilter) ([]Resource, error) {
	qf.Clean()
	entries, err := svc.collection(ctx, "resources")
	if err != nil {
		return nil, err
	}

	resources := make([]Resource, 0, len(entries))
	for id, entry := range entries {
		var r Resource
		if _, err = store.Decode(entry, &r); err != nil {
			return nil, err
		}
		r.ID = id
		if qf.Grade != "" && r.Grade != qf.Grade {
			continue
		}
		if qf.Type != "" && r.Type != qf.Type {
			continue
		}
		if !matchesSearch(qf.Search, r.Title) {
			continue
		}
		resources = append(resources, r)
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].Timestamp > resources[j].Timestamp })
	return resources, nil
}

// Subjective questions

func (svc *Service) CreateSubjectiveQuestion(ctx context.Context, nq NewSubjectiveQuestion) (SubjectiveQuestion, error) {
	if err := nq.Validate(svc); err != nil {
		return SubjectiveQuestion{}, err
	}
	sq := SubjectiveQuestion{
		Title:       nq.Title,
		Content:     nq.Content,
		ContentType: nq.ContentType,
		Grade:       nq.Grade,
		ImageURL:    nq.ImageURL,
		Timestamp:   core.NowMillis(),
	}
	id, err := svc.store.Push(ctx, "subjective_questions", sq)
	if err != nil {
		return SubjectiveQuestion{}, err
	}
	sq.ID = id
	return sq, nil
}

func (svc *Service) DeleteSubjectiveQuestion(ctx context.Context, id string) error {
	return svc.store.Delete(ctx, store.JoinPath("subjective_questions", id))
}

func (svc *Service) ListSubjectiveQuestions(ctx context.Context, qf QueryFilter) ([]SubjectiveQuestion, error) {
	qf.Clean()
	entries, err := svc.collection(ctx, "subjective_questions")
	if err != nil {
		return nil, err
	}

	questions := make([]SubjectiveQuestion, 0, len(entries))
	for id, entry := range entries {
		var q SubjectiveQuestion
		if _, err = store.Decode(entry, &q); err != nil {
			return nil, err
		}
		q.ID = id
		if qf.Grade != "" && q.Grade != qf.Grade {
			continue
		}
		if !matchesSearch(qf.Search, q.Title, q.Content) {
			continue
		}
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Timestamp > questions[j].Timestamp })
	return questions, nil
}

// Notices

func (svc *Service) CreateNotice(ctx context.Context, nn NewNotice) (Notice, error) {
	if err := nn.Validate(svc); err != nil {
		return Notice{}, err
	}
	notice := Notice{Text: nn.Text, Timestamp: core.NowMillis()}
	id, err := svc.store.Push(ctx, "notices", notice)
	if err != nil {
		return Notice{}, err
	}
	notice.ID = id
	return notice, nil
}

func (svc *Service) DeleteNotice(ctx context.Context, id string) error {
	return svc.store.Delete(ctx, store.JoinPath("notices", id))
}

func (svc *Service) ListNotices(ctx context.Context) ([]Notice, error) {
	entries, err := svc.collection(ctx, "notices")
	if err != nil {
		return nil, err
	}
	notices := make([]Notice, 0, len(entries))
	for id, entry := range entries {
		var n Notice
		if _, err = store.Decode(entry, &n); err != nil {
			return nil, err
		}
		n.ID = id
		notices = append(notices, n)
	}
	sort.Slice(notices, func(i, j int) bool { return notices[i].Timestamp > notices[j].Timestamp })
	return notices, nil
}

// App config

// GetConfig returns the config singleton, zero-valued when never set.
func (svc *Service) GetConfig(ctx context.Context) (AppConfig, error) {
	raw, err := svc.store.Get(ctx, "config")
	if err != nil {
		return AppConfig{}, err
	}
	var conf AppConfig
	if _, err = store.Decode(raw, &conf); err != nil {
		return AppConfig{}, err
	}
	return conf, nil
}

func (svc *Service) UpdateConfig(ctx context.Context, conf AppConfig) (AppConfig, error) {
	if err := svc.store.Set(ctx, "config", conf); err != nil {
		return AppConfig{}, err
	}
	return conf, nil
}

func (svc *Service) collection(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	raw, err := svc.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return store.DecodeMap(raw)
}

func matchesSearch(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
