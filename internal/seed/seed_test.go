package seed

import (
	"strings"
	"testing"

	"kinship/internal/models"
	"kinship/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPresets(t *testing.T) {
	presets, err := BuiltinPresets()
	require.NoError(t, err)
	assert.Equal(t, []string{"busy", "small"}, PresetNames(presets))
	assert.Equal(t, "alice", presets["small"].Members[0].Username)
}

func TestLoadPresets_RejectsUnknownAndNegative(t *testing.T) {
	_, err := LoadPresets(strings.NewReader("x:\n  posts_per_member: 2\n  colour: red\n"))
	assert.Error(t, err)

	_, err = LoadPresets(strings.NewReader("x:\n  random_members: -1\n"))
	assert.Error(t, err)

	presets, err := LoadPresets(strings.NewReader("x:\n  random_members: 3\n  privacy: {public: 1}\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, presets["x"].RandomMembers)
	assert.Equal(t, 1, presets["x"].Privacy.Public)
}

func TestSeeder_RunSmallPreset(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s, err := NewSeeder(db, Options{SkipBcrypt: true, RandSeed: 42, BatchSize: 10})
	require.NoError(t, err)

	presets, err := BuiltinPresets()
	require.NoError(t, err)
	require.NoError(t, s.Run(presets["small"]))

	var accounts []models.Account
	require.NoError(t, db.Find(&accounts).Error)
	assert.Len(t, accounts, 8)
	for _, a := range accounts {
		assert.True(t, a.Confirmed(), a.Email)
	}

	var alice models.Profile
	require.NoError(t, db.Where("username = ?", "alice").First(&alice).Error)
	assert.Equal(t, "Alice Example", alice.FullName)

	var posts int64
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	assert.EqualValues(t, 32, posts)

	var friendships []models.Friendship
	require.NoError(t, db.Find(&friendships).Error)
	assert.Len(t, friendships, 16)
	pairs := map[[2]string]bool{}
	for _, f := range friendships {
		a, b := f.SenderID.String(), f.ReceiverID.String()
		if a > b {
			a, b = b, a
		}
		assert.False(t, pairs[[2]string{a, b}], "one row per pair")
		pairs[[2]string{a, b}] = true
	}

	require.NoError(t, s.ClearAll())
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	assert.Zero(t, posts)
}

func TestSeeder_SocialMeshTinyGroups(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s, err := NewSeeder(db, Options{SkipBcrypt: true, RandSeed: 1})
	require.NoError(t, err)

	members, err := s.SeedMembers(nil, 2)
	require.NoError(t, err)

	n, err := s.SeedSocialMesh(members[:1], 3)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.SeedSocialMesh(members, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPickPrivacy(t *testing.T) {
	f, err := NewFactory(nil, Options{SkipBcrypt: true, RandSeed: 7})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.Equal(t, models.PrivacyFriends, f.pickPrivacy(PrivacyMix{Friends: 1}))
	}
	assert.Equal(t, models.PrivacyPublic, f.pickPrivacy(PrivacyMix{}))
}
