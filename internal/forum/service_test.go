// AngelaMos | 2026
// service_test.go

package forum

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/trailnetzero/community-api/internal/config"
	"github.com/trailnetzero/community-api/internal/core"
	"github.com/trailnetzero/community-api/internal/realtime"
)

type mockRepository struct {
	Repository

	threads    map[string]*Thread
	posts      map[int64]*Post
	flags      map[string]*Flag
	flagQueue  []FlagWithContext
	categories []Category
	nextID     int64

	createPostErr error
	createFlagErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		threads: make(map[string]*Thread),
		posts:   make(map[int64]*Post),
		flags:   make(map[string]*Flag),
		nextID:  1,
	}
}

func (m *mockRepository) CreateThreadWithFirstPost(
	_ context.Context,
	thread *Thread,
	post *Post,
) error {
	thread.PostCount = 1
	thread.LastPostAt = time.Now()
	m.threads[thread.ID] = thread

	post.ID = m.nextID
	m.nextID++
	post.ThreadID = thread.ID
	m.posts[post.ID] = post
	return nil
}

func (m *mockRepository) GetThread(
	_ context.Context,
	id string,
) (*Thread, error) {
	t, ok := m.threads[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return t, nil
}

func (m *mockRepository) ListThreads(
	_ context.Context,
	params ListThreadsParams,
) ([]Thread, int, error) {
	var out []Thread
	for _, t := range m.threads {
		if t.Deleted && !params.IncludeDeleted {
			continue
		}
		if t.Archived && !params.IncludeArchived {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *mockRepository) ListCategories(_ context.Context) ([]Category, error) {
	return m.categories, nil
}

func (m *mockRepository) PermanentlyDeleteThread(
	_ context.Context,
	id string,
) error {
	if _, ok := m.threads[id]; !ok {
		return core.ErrNotFound
	}
	delete(m.threads, id)
	return nil
}

func (m *mockRepository) CreatePost(_ context.Context, post *Post) error {
	if m.createPostErr != nil {
		return m.createPostErr
	}
	post.ID = m.nextID
	m.nextID++
	m.posts[post.ID] = post

	t := m.threads[post.ThreadID]
	t.PostCount++
	return nil
}

func (m *mockRepository) GetPost(
	_ context.Context,
	id int64,
) (*Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) ListPosts(
	_ context.Context,
	params ListPostsParams,
) ([]Post, int, error) {
	var out []Post
	for _, p := range m.posts {
		if p.ThreadID != params.ThreadID {
			continue
		}
		if p.Deleted && !params.IncludeDeleted {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

// SetPostDeleted mirrors the conditional stamping of the SQL update: the
// first deletion records who and when, later ones leave the stamp alone.
func (m *mockRepository) SetPostDeleted(
	_ context.Context,
	id int64,
	adminID string,
	value bool,
) error {
	p, ok := m.posts[id]
	if !ok {
		return core.ErrNotFound
	}
	if value {
		if p.DeletedAt == nil {
			now := time.Now()
			admin := adminID
			p.DeletedAt = &now
			p.DeletedBy = &admin
		}
		p.Deleted = true
	} else {
		p.Deleted = false
		p.DeletedAt = nil
		p.DeletedBy = nil
	}
	return nil
}

func (m *mockRepository) CreateFlag(_ context.Context, flag *Flag) error {
	if m.createFlagErr != nil {
		return m.createFlagErr
	}
	for _, f := range m.flags {
		if f.PostID == flag.PostID && f.ReporterID == flag.ReporterID {
			return core.ErrDuplicateKey
		}
	}
	m.flags[flag.ID] = flag
	return nil
}

func (m *mockRepository) ListFlags(
	_ context.Context,
	includeResolved bool,
	page, pageSize int,
) ([]FlagWithContext, int, error) {
	var out []FlagWithContext
	for _, f := range m.flagQueue {
		if f.IsResolved() && !includeResolved {
			continue
		}
		out = append(out, f)
	}
	return out, len(out), nil
}

type mockPublisher struct {
	events []realtime.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev realtime.Event) {
	m.events = append(m.events, ev)
}

func newTestService(repo Repository, pub Publisher) *Service {
	return NewService(repo, pub, config.ForumConfig{
		ThreadPageSize: 25,
		PostPageSize:   100,
	}, slog.Default())
}

func TestCreateThreadPublishesFirstPost(t *testing.T) {
	repo := newMockRepository()
	pub := &mockPublisher{}
	svc := newTestService(repo, pub)

	thread, post, err := svc.CreateThread(
		context.Background(),
		"author-1",
		CreateThreadRequest{
			CategoryID: "cat-1",
			Title:      "  Trail conditions on the north loop  ",
			Body:       "Anyone been up since the storm?",
		},
	)
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}

	if thread.Title != "Trail conditions on the north loop" {
		t.Errorf("title = %q, want trimmed", thread.Title)
	}
	if thread.PostCount != 1 {
		t.Errorf("PostCount = %d, want 1", thread.PostCount)
	}
	if thread.ReplyCount() != 0 {
		t.Errorf("ReplyCount = %d, want 0 for a fresh thread", thread.ReplyCount())
	}
	if post.ThreadID != thread.ID {
		t.Errorf("post thread = %q, want %q", post.ThreadID, thread.ID)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].ThreadID != thread.ID || pub.events[0].PostID != post.ID {
		t.Errorf("event = %+v", pub.events[0])
	}
}

func TestGetThreadHidesDeletedFromMembers(t *testing.T) {
	repo := newMockRepository()
	repo.threads["t1"] = &Thread{ID: "t1", Deleted: true}
	svc := newTestService(repo, &mockPublisher{})

	if _, err := svc.GetThread(context.Background(), "t1", false); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("member: err = %v, want ErrNotFound", err)
	}

	thread, err := svc.GetThread(context.Background(), "t1", true)
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if !thread.Deleted {
		t.Error("admin view lost the deleted flag")
	}
}

func TestListThreadsForcesDeletedFilterForMembers(t *testing.T) {
	repo := newMockRepository()
	repo.threads["t1"] = &Thread{ID: "t1"}
	repo.threads["t2"] = &Thread{ID: "t2", Deleted: true}
	svc := newTestService(repo, &mockPublisher{})

	threads, _, err := svc.ListThreads(
		context.Background(),
		ListThreadsParams{IncludeDeleted: true},
		false,
	)
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(threads) != 1 || threads[0].ID != "t1" {
		t.Errorf("member list = %v, want only the live thread", threads)
	}

	threads, _, err = svc.ListThreads(
		context.Background(),
		ListThreadsParams{IncludeDeleted: true},
		true,
	)
	if err != nil {
		t.Fatalf("ListThreads admin: %v", err)
	}
	if len(threads) != 2 {
		t.Errorf("admin list has %d threads, want 2", len(threads))
	}
}

func TestListThreadsExcludesArchivedByDefault(t *testing.T) {
	repo := newMockRepository()
	repo.threads["t1"] = &Thread{ID: "t1"}
	repo.threads["t2"] = &Thread{ID: "t2", Archived: true}
	svc := newTestService(repo, &mockPublisher{})

	threads, _, err := svc.ListThreads(
		context.Background(),
		ListThreadsParams{},
		false,
	)
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(threads) != 1 || threads[0].ID != "t1" {
		t.Errorf("default list = %v, want only the active thread", threads)
	}

	// Archived threads stay readable; asking for them works for anyone.
	threads, _, err = svc.ListThreads(
		context.Background(),
		ListThreadsParams{IncludeArchived: true},
		false,
	)
	if err != nil {
		t.Fatalf("ListThreads archived: %v", err)
	}
	if len(threads) != 2 {
		t.Errorf("archived list has %d threads, want 2", len(threads))
	}
}

func TestCreatePostModerationRules(t *testing.T) {
	tests := []struct {
		name    string
		thread  Thread
		isAdmin bool
		wantErr error
	}{
		{
			name:   "open thread accepts member posts",
			thread: Thread{ID: "t1", PostCount: 1},
		},
		{
			name:    "locked thread rejects member posts",
			thread:  Thread{ID: "t1", Locked: true, PostCount: 1},
			wantErr: ErrThreadLocked,
		},
		{
			name:    "locked thread accepts admin posts",
			thread:  Thread{ID: "t1", Locked: true, PostCount: 1},
			isAdmin: true,
		},
		{
			name:    "archived thread rejects member posts",
			thread:  Thread{ID: "t1", Archived: true, PostCount: 1},
			wantErr: ErrThreadArchived,
		},
		{
			name:    "archived thread accepts admin posts",
			thread:  Thread{ID: "t1", Archived: true, PostCount: 1},
			isAdmin: true,
		},
		{
			name:    "locked wins over archived for members",
			thread:  Thread{ID: "t1", Locked: true, Archived: true, PostCount: 1},
			wantErr: ErrThreadLocked,
		},
		{
			name:    "deleted thread is invisible to members",
			thread:  Thread{ID: "t1", Deleted: true, PostCount: 1},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "deleted thread rejects admin posts too",
			thread:  Thread{ID: "t1", Deleted: true, PostCount: 1},
			isAdmin: true,
			wantErr: ErrThreadDeleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			thread := tt.thread
			repo.threads[thread.ID] = &thread
			pub := &mockPublisher{}
			svc := newTestService(repo, pub)

			post, err := svc.CreatePost(
				context.Background(),
				"author-1",
				thread.ID,
				CreatePostRequest{Body: "fresh snow above the tree line"},
				tt.isAdmin,
			)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if len(pub.events) != 0 {
					t.Error("rejected post was published")
				}
				return
			}

			if err != nil {
				t.Fatalf("CreatePost: %v", err)
			}
			if post.ID == 0 {
				t.Error("post id not assigned")
			}
			if repo.threads[thread.ID].PostCount != 2 {
				t.Errorf("PostCount = %d, want 2", repo.threads[thread.ID].PostCount)
			}
			if len(pub.events) != 1 || pub.events[0].PostID != post.ID {
				t.Errorf("events = %+v", pub.events)
			}
		})
	}
}

func TestCreatePostMissingThread(t *testing.T) {
	svc := newTestService(newMockRepository(), &mockPublisher{})

	_, err := svc.CreatePost(
		context.Background(),
		"author-1",
		"missing",
		CreatePostRequest{Body: "hello out there"},
		false,
	)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetPostDeletedRecordsAdmin(t *testing.T) {
	repo := newMockRepository()
	repo.threads["t1"] = &Thread{ID: "t1", PostCount: 2}
	repo.posts[5] = &Post{ID: 5, ThreadID: "t1", Body: "first"}
	svc := newTestService(repo, &mockPublisher{})

	if err := svc.SetPostDeleted(context.Background(), 5, "admin-1", true); err != nil {
		t.Fatalf("SetPostDeleted: %v", err)
	}

	p := repo.posts[5]
	if !p.Deleted || p.DeletedAt == nil || p.DeletedBy == nil {
		t.Fatalf("post not stamped: %+v", p)
	}
	if *p.DeletedBy != "admin-1" {
		t.Errorf("DeletedBy = %q, want admin-1", *p.DeletedBy)
	}
	if repo.threads["t1"].PostCount != 2 {
		t.Errorf("PostCount = %d, soft delete must not touch it",
			repo.threads["t1"].PostCount)
	}

	// Restore clears the stamp.
	if err := svc.SetPostDeleted(context.Background(), 5, "admin-1", false); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if p.Deleted || p.DeletedAt != nil || p.DeletedBy != nil {
		t.Errorf("restore left stamp behind: %+v", p)
	}

	err := svc.SetPostDeleted(context.Background(), 99, "admin-1", true)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing post: err = %v, want ErrNotFound", err)
	}
}

func TestListPostsHidesDeletedFromMembers(t *testing.T) {
	repo := newMockRepository()
	repo.threads["t1"] = &Thread{ID: "t1", PostCount: 2}
	repo.posts[1] = &Post{ID: 1, ThreadID: "t1", Body: "live"}
	repo.posts[2] = &Post{ID: 2, ThreadID: "t1", Body: "hidden", Deleted: true}
	svc := newTestService(repo, &mockPublisher{})

	// Members cannot talk their way into seeing deleted posts.
	posts, _, err := svc.ListPosts(
		context.Background(),
		ListPostsParams{ThreadID: "t1", IncludeDeleted: true},
		false,
	)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != 1 {
		t.Errorf("member view = %v, want only the live post", posts)
	}

	posts, _, err = svc.ListPosts(
		context.Background(),
		ListPostsParams{ThreadID: "t1", IncludeDeleted: true},
		true,
	)
	if err != nil {
		t.Fatalf("ListPosts admin: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("admin view has %d posts, want 2", len(posts))
	}
}

func TestFlagPost(t *testing.T) {
	repo := newMockRepository()
	repo.threads["t1"] = &Thread{ID: "t1", PostCount: 1}
	repo.posts[7] = &Post{ID: 7, ThreadID: "t1"}
	svc := newTestService(repo, &mockPublisher{})

	flag, err := svc.FlagPost(
		context.Background(),
		"reporter-1",
		7,
		CreateFlagRequest{Reason: "  spam link  "},
	)
	if err != nil {
		t.Fatalf("FlagPost: %v", err)
	}
	if flag.Reason != "spam link" {
		t.Errorf("reason = %q, want trimmed", flag.Reason)
	}
	if flag.IsResolved() {
		t.Error("fresh flag already resolved")
	}

	// Same reporter again: write-once.
	_, err = svc.FlagPost(
		context.Background(),
		"reporter-1",
		7,
		CreateFlagRequest{Reason: "still spam"},
	)
	if !errors.Is(err, core.ErrDuplicateKey) {
		t.Errorf("duplicate flag: err = %v, want ErrDuplicateKey", err)
	}

	// A different member can still flag the same post.
	if _, err := svc.FlagPost(
		context.Background(),
		"reporter-2",
		7,
		CreateFlagRequest{Reason: "agree, spam"},
	); err != nil {
		t.Errorf("second reporter: %v", err)
	}
}

func TestFlagPostWithoutReason(t *testing.T) {
	repo := newMockRepository()
	repo.threads["t1"] = &Thread{ID: "t1", PostCount: 1}
	repo.posts[7] = &Post{ID: 7, ThreadID: "t1"}
	svc := newTestService(repo, &mockPublisher{})

	flag, err := svc.FlagPost(
		context.Background(),
		"reporter-1",
		7,
		CreateFlagRequest{},
	)
	if err != nil {
		t.Fatalf("FlagPost: %v", err)
	}
	if flag.Reason != "" {
		t.Errorf("reason = %q, want empty", flag.Reason)
	}
}

func TestListFlagsCarriesPostContext(t *testing.T) {
	repo := newMockRepository()
	resolved := time.Now()
	repo.flagQueue = []FlagWithContext{
		{
			Flag:        Flag{ID: "f2", PostID: 8, ReporterID: "r2"},
			PostBody:    "newer report",
			ThreadID:    "t1",
			ThreadTitle: "Trail conditions",
		},
		{
			Flag: Flag{
				ID: "f1", PostID: 7, ReporterID: "r1",
				ResolvedAt: &resolved,
			},
			PostBody:    "older, already handled",
			ThreadID:    "t1",
			ThreadTitle: "Trail conditions",
		},
	}
	svc := newTestService(repo, &mockPublisher{})

	items, total, err := svc.ListFlags(context.Background(), false, 1, 20)
	if err != nil {
		t.Fatalf("ListFlags: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("open queue = %d items, want 1", len(items))
	}
	if items[0].ID != "f2" || items[0].PostBody != "newer report" ||
		items[0].ThreadTitle != "Trail conditions" {
		t.Errorf("queue item lost context: %+v", items[0])
	}

	resp := ToFlagQueueResponse(&items[0])
	if resp.PostBody != "newer report" || resp.ThreadID != "t1" {
		t.Errorf("response lost context: %+v", resp)
	}

	_, total, err = svc.ListFlags(context.Background(), true, 1, 20)
	if err != nil {
		t.Fatalf("ListFlags resolved: %v", err)
	}
	if total != 2 {
		t.Errorf("full queue = %d items, want 2", total)
	}
}

func TestFlagPostMissingPost(t *testing.T) {
	svc := newTestService(newMockRepository(), &mockPublisher{})

	_, err := svc.FlagPost(
		context.Background(),
		"reporter-1",
		99,
		CreateFlagRequest{Reason: "spam"},
	)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestThreadReplyCount(t *testing.T) {
	tests := []struct {
		postCount int
		want      int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{15, 14},
	}

	for _, tt := range tests {
		th := Thread{PostCount: tt.postCount}
		if got := th.ReplyCount(); got != tt.want {
			t.Errorf("ReplyCount with %d posts = %d, want %d",
				tt.postCount, got, tt.want)
		}
	}
}
