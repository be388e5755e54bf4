// AngelaMos | 2026
// entity.go

package forum

import (
	"time"
)

type Category struct {
	ID          string    `db:"id"`
	Slug        string    `db:"slug"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Position    int       `db:"position"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Thread carries four independent moderation flags. Pinned affects
// ordering, locked blocks new posts from members, archived makes the
// thread read-only, deleted hides it from members entirely. Any
// combination can hold at once.
type Thread struct {
	ID         string     `db:"id"`
	CategoryID string     `db:"category_id"`
	AuthorID   string     `db:"author_id"`
	Title      string     `db:"title"`
	Pinned     bool       `db:"pinned"`
	Locked     bool       `db:"locked"`
	Archived   bool       `db:"archived"`
	ArchivedAt *time.Time `db:"archived_at"`
	Deleted    bool       `db:"deleted"`
	DeletedAt  *time.Time `db:"deleted_at"`
	PostCount  int        `db:"post_count"`
	LastPostAt time.Time  `db:"last_post_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// ReplyCount is the display count: the opening post is part of the thread,
// not a reply. PostCount itself is the raw number of inserted posts.
func (t *Thread) ReplyCount() int {
	if t.PostCount <= 1 {
		return 0
	}
	return t.PostCount - 1
}

// Post ids are a monotonically increasing sequence, which is what makes
// Last-Event-ID replay on the post stream possible. Deleted is the one
// mutable post flag: soft, admin-only, stamping who hid it and when.
// The thread's post_count stays at the raw insert count either way.
type Post struct {
	ID        int64      `db:"id"`
	ThreadID  string     `db:"thread_id"`
	AuthorID  string     `db:"author_id"`
	Body      string     `db:"body"`
	Deleted   bool       `db:"deleted"`
	DeletedAt *time.Time `db:"deleted_at"`
	DeletedBy *string    `db:"deleted_by"`
	CreatedAt time.Time  `db:"created_at"`
}

// Flag is a member report against a post. A member can flag a given post
// once; the report itself is immutable, only its resolution state moves.
type Flag struct {
	ID         string     `db:"id"`
	PostID     int64      `db:"post_id"`
	ReporterID string     `db:"reporter_id"`
	Reason     string     `db:"reason"`
	CreatedAt  time.Time  `db:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at"`
	ResolvedBy *string    `db:"resolved_by"`
}

func (f *Flag) IsResolved() bool {
	return f.ResolvedAt != nil
}

// FlagWithContext is the moderator-queue row: the flag plus the post body
// and thread it points at, so the queue is readable without extra lookups.
type FlagWithContext struct {
	Flag
	PostBody    string `db:"post_body"`
	ThreadID    string `db:"thread_id"`
	ThreadTitle string `db:"thread_title"`
}
