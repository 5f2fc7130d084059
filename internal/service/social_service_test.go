package service

import (
	"context"
	"strings"
	"testing"

	"kinship/internal/models"
	"kinship/internal/notifications"
	"kinship/internal/policy"
	"kinship/internal/repository"
	"kinship/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type socialFixture struct {
	db       *gorm.DB
	profiles *ProfileService
	posts    *PostService
	friends  *FriendService
	events   *publisherMock
}

func newSocialFixture(t *testing.T) *socialFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	friendRepo := repository.NewFriendRepository(db)
	profileRepo := repository.NewProfileRepository(db, nil)
	engine := policy.NewEngine(friendRepo)
	events := &publisherMock{}
	return &socialFixture{
		db:       db,
		profiles: NewProfileService(profileRepo, engine),
		posts:    NewPostService(repository.NewPostRepository(db), profileRepo, engine),
		friends:  NewFriendService(friendRepo, profileRepo, engine, events),
		events:   events,
	}
}

func ptr[T any](v T) *T { return &v }

func TestProfileService_UpdateProfile(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	me := testutil.CreateMember(t, f.db, "me")
	other := testutil.CreateMember(t, f.db, "other")

	updated, err := f.profiles.UpdateProfile(ctx, me.ID, me.ID, UpdateProfileInput{
		FullName:  ptr("  Me Myself "),
		Bio:       ptr("hello"),
		AvatarURL: ptr("https://cdn.example.com/me.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Me Myself", updated.FullName)
	assert.Equal(t, "me", updated.Username)

	_, err = f.profiles.UpdateProfile(ctx, me.ID, other.ID, UpdateProfileInput{Bio: ptr("hijack")})
	assert.Equal(t, models.CodeForbidden, appCode(err))

	_, err = f.profiles.UpdateProfile(ctx, me.ID, me.ID, UpdateProfileInput{Bio: ptr(strings.Repeat("x", 501))})
	assert.Equal(t, models.CodeValidation, appCode(err))

	_, err = f.profiles.UpdateProfile(ctx, me.ID, me.ID, UpdateProfileInput{Username: ptr("other")})
	assert.Equal(t, models.CodeConflict, appCode(err))

	_, err = f.profiles.UpdateProfile(ctx, policy.Anonymous, me.ID, UpdateProfileInput{Bio: ptr("x")})
	assert.Equal(t, models.CodeUnauthorized, appCode(err))

	got, err := f.profiles.GetProfile(ctx, policy.Anonymous, me.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Bio)
}

func TestPostService_VisibilityAndOwnership(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	owner := testutil.CreateMember(t, f.db, "owner")
	friend := testutil.CreateMember(t, f.db, "friend")
	stranger := testutil.CreateMember(t, f.db, "stranger")
	testutil.Befriend(t, f.db, owner.ID, friend.ID, models.FriendshipStatusAccepted)

	friendsOnly, err := f.posts.CreatePost(ctx, owner.ID, CreatePostInput{Content: "for friends", Privacy: models.PrivacyFriends})
	require.NoError(t, err)
	require.NotNil(t, friendsOnly.Author)
	assert.Equal(t, "owner", friendsOnly.Author.Username)

	defaulted, err := f.posts.CreatePost(ctx, owner.ID, CreatePostInput{Content: "hi all"})
	require.NoError(t, err)
	assert.Equal(t, models.PrivacyPublic, defaulted.Privacy)

	_, err = f.posts.GetPost(ctx, friend.ID, friendsOnly.ID)
	assert.NoError(t, err)
	_, err = f.posts.GetPost(ctx, stranger.ID, friendsOnly.ID)
	assert.Equal(t, models.CodeNotFound, appCode(err), "hidden posts look missing")

	_, err = f.posts.UpdatePost(ctx, friend.ID, friendsOnly.ID, UpdatePostInput{Content: ptr("edited")})
	assert.Equal(t, models.CodeForbidden, appCode(err), "visible but not owned")

	_, err = f.posts.UpdatePost(ctx, stranger.ID, friendsOnly.ID, UpdatePostInput{Content: ptr("edited")})
	assert.Equal(t, models.CodeNotFound, appCode(err))

	updated, err := f.posts.UpdatePost(ctx, owner.ID, friendsOnly.ID, UpdatePostInput{Privacy: ptr(models.PrivacyPrivate)})
	require.NoError(t, err)
	assert.Equal(t, models.PrivacyPrivate, updated.Privacy)

	_, err = f.posts.GetPost(ctx, friend.ID, friendsOnly.ID)
	assert.Equal(t, models.CodeNotFound, appCode(err))

	feed, err := f.posts.ListPosts(ctx, ListPostsInput{Requester: friend.ID, Limit: 20})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "hi all", feed[0].Content)

	_, err = f.posts.ListPosts(ctx, ListPostsInput{Requester: friend.ID, Owner: uuid.New(), Limit: 20})
	assert.Equal(t, models.CodeNotFound, appCode(err))

	assert.Equal(t, models.CodeForbidden, appCode(f.posts.DeletePost(ctx, friend.ID, defaulted.ID)))
	require.NoError(t, f.posts.DeletePost(ctx, owner.ID, defaulted.ID))
}

func TestPostService_CreateValidation(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	owner := testutil.CreateMember(t, f.db, "writer")

	tests := []struct {
		name string
		in   CreatePostInput
	}{
		{"blank content", CreatePostInput{Content: "   "}},
		{"too long", CreatePostInput{Content: strings.Repeat("a", 5001)}},
		{"bad privacy", CreatePostInput{Content: "x", Privacy: "everyone"}},
		{"bad image", CreatePostInput{Content: "x", ImageURL: "javascript:alert(1)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.posts.CreatePost(ctx, owner.ID, tt.in)
			assert.Equal(t, models.CodeValidation, appCode(err))
		})
	}

	_, err := f.posts.CreatePost(ctx, policy.Anonymous, CreatePostInput{Content: "x"})
	assert.Equal(t, models.CodeUnauthorized, appCode(err))
}

func TestFriendService_RequestLifecycle(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	alice := testutil.CreateMember(t, f.db, "alice")
	bob := testutil.CreateMember(t, f.db, "bob")
	carol := testutil.CreateMember(t, f.db, "carol")

	f.events.On("Notify", mock.Anything, bob.ID, notifications.EventFriendshipRequested, mock.Anything).Return(nil).Once()
	req, err := f.friends.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusPending, req.Status)

	_, err = f.friends.SendFriendRequest(ctx, alice.ID, bob.ID)
	assert.Equal(t, models.CodeConflict, appCode(err))
	_, err = f.friends.SendFriendRequest(ctx, bob.ID, alice.ID)
	assert.Equal(t, models.CodeConflict, appCode(err))
	_, err = f.friends.SendFriendRequest(ctx, alice.ID, alice.ID)
	assert.Equal(t, models.CodeValidation, appCode(err))

	_, err = f.friends.GetFriendship(ctx, carol.ID, req.ID)
	assert.Equal(t, models.CodeNotFound, appCode(err), "outsiders cannot see the row")
	_, err = f.friends.UpdateStatus(ctx, carol.ID, req.ID, models.FriendshipStatusAccepted)
	assert.Equal(t, models.CodeNotFound, appCode(err))

	_, err = f.friends.UpdateStatus(ctx, alice.ID, req.ID, models.FriendshipStatusAccepted)
	assert.Equal(t, models.CodeForbidden, appCode(err), "the sender cannot accept")

	_, err = f.friends.UpdateStatus(ctx, bob.ID, req.ID, models.FriendshipStatusPending)
	assert.Equal(t, models.CodeValidation, appCode(err))

	f.events.On("Notify", mock.Anything, alice.ID, notifications.EventFriendshipUpdated, mock.Anything).Return(nil).Once()
	accepted, err := f.friends.UpdateStatus(ctx, bob.ID, req.ID, models.FriendshipStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipStatusAccepted, accepted.Status)

	friends, err := f.friends.GetFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	between, err := f.friends.FriendshipWith(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, between)
	assert.Equal(t, req.ID, between.ID)

	f.events.On("Notify", mock.Anything, bob.ID, notifications.EventFriendshipUpdated, mock.Anything).Return(nil).Once()
	_, err = f.friends.UpdateStatus(ctx, alice.ID, req.ID, models.FriendshipStatusRejected)
	require.NoError(t, err)

	_, err = f.friends.UpdateStatus(ctx, bob.ID, req.ID, models.FriendshipStatusAccepted)
	assert.Equal(t, models.CodeConflict, appCode(err), "rejected rows are final")

	f.events.On("Notify", mock.Anything, alice.ID, notifications.EventFriendshipRequested, mock.Anything).Return(nil).Once()
	again, err := f.friends.SendFriendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err, "a rejected pair may start over")
	assert.Equal(t, bob.ID, again.SenderID)

	pending, err := f.friends.ListFriendships(ctx, alice.ID, models.FriendshipStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.friends.ListFriendships(ctx, alice.ID, "blocked")
	assert.Equal(t, models.CodeValidation, appCode(err))

	f.events.On("Notify", mock.Anything, bob.ID, notifications.EventFriendshipUpdated, mock.Anything).Return(nil).Once()
	require.NoError(t, f.friends.RemoveFriendship(ctx, alice.ID, again.ID))

	f.events.AssertExpectations(t)
}
