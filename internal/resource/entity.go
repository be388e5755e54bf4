// AngelaMos | 2026
// entity.go

package resource

import (
	"time"
)

const (
	KindArticle    = "article"
	KindLink       = "link"
	KindUpdate     = "update"
	KindNewsletter = "newsletter"
	KindGuide      = "guide"
)

// Resource is a piece of member-only content. Link resources carry a URL
// and usually no body; the other kinds carry a body and no URL. Drafts
// stay invisible to members until published.
type Resource struct {
	ID          string     `db:"id"`
	Kind        string     `db:"kind"`
	Slug        string     `db:"slug"`
	Title       string     `db:"title"`
	Summary     string     `db:"summary"`
	Body        string     `db:"body"`
	URL         string     `db:"url"`
	AuthorID    string     `db:"author_id"`
	Published   bool       `db:"published"`
	PublishedAt *time.Time `db:"published_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
