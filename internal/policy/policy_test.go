package policy_test

import (
	"context"
	"testing"

	"kinship/internal/models"
	"kinship/internal/policy"
	"kinship/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// dbRelations answers AreFriends straight from the friendships table.
type dbRelations struct{ db *gorm.DB }

func (r dbRelations) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("status = ?", models.FriendshipStatusAccepted).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Count(&n).Error
	return n > 0, err
}

type world struct {
	db                 *gorm.DB
	engine             *policy.Engine
	alice, bob, carol  *models.Profile
	public, fr, secret *models.Post
}

// newWorld: alice owns one post of each privacy level; bob is her accepted friend; carol is a stranger.
func newWorld(t *testing.T) *world {
	db := testutil.NewSQLiteDB(t)
	w := &world{db: db, engine: policy.NewEngine(dbRelations{db})}
	w.alice = testutil.CreateMember(t, db, "alice")
	w.bob = testutil.CreateMember(t, db, "bob")
	w.carol = testutil.CreateMember(t, db, "carol")
	w.public = testutil.CreatePost(t, db, w.alice.ID, models.PrivacyPublic, "hello world")
	w.fr = testutil.CreatePost(t, db, w.alice.ID, models.PrivacyFriends, "friends only")
	w.secret = testutil.CreatePost(t, db, w.alice.ID, models.PrivacyPrivate, "diary")
	testutil.Befriend(t, db, w.bob.ID, w.alice.ID, models.FriendshipStatusAccepted)
	return w
}

func (w *world) visible(t *testing.T, requester uuid.UUID) []uuid.UUID {
	t.Helper()
	var posts []models.Post
	require.NoError(t, w.db.Scopes(policy.VisiblePosts(requester)).Order("posts.created_at").Find(&posts).Error)
	ids := make([]uuid.UUID, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestPostVisibility(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		requester uuid.UUID
		post      *models.Post
		want      bool
	}{
		{"anonymous sees public", policy.Anonymous, w.public, true},
		{"anonymous misses friends", policy.Anonymous, w.fr, false},
		{"stranger sees public", w.carol.ID, w.public, true},
		{"stranger misses friends", w.carol.ID, w.fr, false},
		{"stranger misses private", w.carol.ID, w.secret, false},
		{"friend sees friends", w.bob.ID, w.fr, true},
		{"friend misses private", w.bob.ID, w.secret, false},
		{"owner sees private", w.alice.ID, w.secret, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := w.engine.Allowed(ctx, policy.Posts, policy.Select, tt.requester, tt.post)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			// The SQL scope must agree with the rule.
			assert.Equal(t, tt.want, contains(w.visible(t, tt.requester), tt.post.ID))
		})
	}
}

func TestPostVisibility_FriendshipDirectionAndStatus(t *testing.T) {
	w := newWorld(t)

	// Friendship was sent by bob; alice sees bob's friends posts too.
	bobs := testutil.CreatePost(t, w.db, w.bob.ID, models.PrivacyFriends, "bob friends")
	assert.True(t, contains(w.visible(t, w.alice.ID), bobs.ID))

	// Pending is not enough.
	testutil.Befriend(t, w.db, w.carol.ID, w.alice.ID, models.FriendshipStatusPending)
	assert.False(t, contains(w.visible(t, w.carol.ID), w.fr.ID))

	// accepted -> rejected removes access.
	require.NoError(t, w.db.Model(&models.Friendship{}).
		Where("sender_id = ? AND receiver_id = ?", w.bob.ID, w.alice.ID).
		Update("status", models.FriendshipStatusRejected).Error)
	assert.False(t, contains(w.visible(t, w.bob.ID), w.fr.ID))
	ok, err := w.engine.Allowed(context.Background(), policy.Posts, policy.Select, w.bob.ID, w.fr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostMutations(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	assert.NoError(t, w.engine.Authorize(ctx, policy.Posts, policy.Insert, w.alice.ID, &models.Post{UserID: w.alice.ID}))
	err := w.engine.Authorize(ctx, policy.Posts, policy.Insert, w.bob.ID, &models.Post{UserID: w.alice.ID})
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	for _, op := range []policy.Operation{policy.Update, policy.Delete} {
		assert.NoError(t, w.engine.Authorize(ctx, policy.Posts, op, w.alice.ID, w.public))
		assert.Error(t, w.engine.Authorize(ctx, policy.Posts, op, w.bob.ID, w.public))
		assert.Error(t, w.engine.Authorize(ctx, policy.Posts, op, policy.Anonymous, w.public))
	}
}

func TestAuthorizeRead_HidesExistence(t *testing.T) {
	w := newWorld(t)
	err := w.engine.AuthorizeRead(context.Background(), policy.Posts, w.carol.ID, w.secret.ID, w.secret)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestFriendshipRules(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	f := &models.Friendship{ID: uuid.New(), SenderID: w.alice.ID, ReceiverID: w.carol.ID, Status: models.FriendshipStatusPending}

	t.Run("insert rejects forged sender", func(t *testing.T) {
		assert.NoError(t, w.engine.Authorize(ctx, policy.Friendships, policy.Insert, w.alice.ID, f))
		assert.Error(t, w.engine.Authorize(ctx, policy.Friendships, policy.Insert, w.bob.ID, f))
	})

	t.Run("select and delete need a participant", func(t *testing.T) {
		for _, op := range []policy.Operation{policy.Select, policy.Delete} {
			assert.NoError(t, w.engine.Authorize(ctx, policy.Friendships, op, w.carol.ID, f))
			assert.Error(t, w.engine.Authorize(ctx, policy.Friendships, op, w.bob.ID, f))
		}
	})

	t.Run("update may only change status", func(t *testing.T) {
		accepted := *f
		accepted.Status = models.FriendshipStatusAccepted
		assert.NoError(t, w.engine.Authorize(ctx, policy.Friendships, policy.Update, w.carol.ID,
			policy.FriendshipChange{Current: f, Proposed: &accepted}))

		hijack := accepted
		hijack.ReceiverID = w.bob.ID
		assert.Error(t, w.engine.Authorize(ctx, policy.Friendships, policy.Update, w.carol.ID,
			policy.FriendshipChange{Current: f, Proposed: &hijack}))

		assert.Error(t, w.engine.Authorize(ctx, policy.Friendships, policy.Update, w.bob.ID,
			policy.FriendshipChange{Current: f, Proposed: &accepted}))
	})

	t.Run("participant scope", func(t *testing.T) {
		var rows []models.Friendship
		require.NoError(t, w.db.Scopes(policy.ParticipantFriendships(w.carol.ID)).Find(&rows).Error)
		assert.Empty(t, rows)
		require.NoError(t, w.db.Scopes(policy.ParticipantFriendships(w.alice.ID)).Find(&rows).Error)
		assert.Len(t, rows, 1)
		require.NoError(t, w.db.Scopes(policy.ParticipantFriendships(policy.Anonymous)).Find(&rows).Error)
		assert.Empty(t, rows)
	})
}

func TestProfileRules(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	assert.NoError(t, w.engine.Authorize(ctx, policy.Profiles, policy.Select, policy.Anonymous, w.alice))
	assert.NoError(t, w.engine.Authorize(ctx, policy.Profiles, policy.Update, w.alice.ID, w.alice))
	assert.Error(t, w.engine.Authorize(ctx, policy.Profiles, policy.Update, w.bob.ID, w.alice))
	assert.Error(t, w.engine.Authorize(ctx, policy.Profiles, policy.Insert, w.bob.ID, &models.Profile{ID: w.alice.ID}))
	assert.Error(t, w.engine.Authorize(ctx, policy.Profiles, policy.Delete, w.alice.ID, w.alice), "no rule means deny")
}

func TestAuthorize_WrongRowTypeIsInternal(t *testing.T) {
	w := newWorld(t)
	err := w.engine.Authorize(context.Background(), policy.Posts, policy.Update, w.alice.ID, w.alice)
	assert.True(t, models.HasCode(err, models.CodeInternal))
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
