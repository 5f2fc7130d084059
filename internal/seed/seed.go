package seed

import (
	"fmt"
	"log/slog"
	"time"

	"kinship/internal/middleware"
	"kinship/internal/models"

	"gorm.io/gorm"
)

// Options configures a Seeder.
type Options struct {
	// Password for every seeded account. Defaults to DefaultPassword.
	Password   string
	SkipBcrypt bool
	BatchSize  int
	MaxDays    int
	RandSeed   int64
}

// PrivacyMix weights the privacy of generated posts.
type PrivacyMix struct {
	Public  int `yaml:"public"`
	Friends int `yaml:"friends"`
	Private int `yaml:"private"`
}

var defaultMix = PrivacyMix{Public: 5, Friends: 3, Private: 2}

// Seeder populates a database with demo data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
}

func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	if opts.RandSeed == 0 {
		opts.RandSeed = time.Now().UnixNano()
	}
	f, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, factory: f, opts: opts}, nil
}

// ClearAll removes every seeded row, children first.
func (s *Seeder) ClearAll() error {
	for _, m := range []any{&models.Friendship{}, &models.Post{}, &models.Profile{}, &models.Account{}} {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	middleware.Logger.Info("seed: cleared existing data")
	return nil
}

// SeedMembers creates the given members, then fills up to total with fakes.
func (s *Seeder) SeedMembers(specs []MemberSpec, total int) ([]*models.Profile, error) {
	members := make([]*models.Profile, 0, max(total, len(specs)))
	for _, spec := range specs {
		p, err := s.factory.CreateMember(spec)
		if err != nil {
			return nil, err
		}
		members = append(members, p)
	}
	for len(members) < total {
		p, err := s.factory.CreateMember(MemberSpec{})
		if err != nil {
			middleware.Logger.Warn("seed: skipping member", slog.String("error", err.Error()))
			continue
		}
		members = append(members, p)
	}
	middleware.Logger.Info("seed: members created", slog.Int("count", len(members)))
	return members, nil
}

// SeedSocialMesh connects each member to the next few in a ring with
// accepted friendships, and adds one pending request further along.
// Each unordered pair gets at most one row.
func (s *Seeder) SeedSocialMesh(members []*models.Profile, degree int) (int, error) {
	n := len(members)
	if n < 2 {
		return 0, nil
	}
	if degree >= n {
		degree = n - 1
	}

	seen := make(map[[2]int]bool)
	link := func(i, j int, status models.FriendshipStatus) error {
		key := [2]int{min(i, j), max(i, j)}
		if i == j || seen[key] {
			return nil
		}
		seen[key] = true
		_, err := s.factory.CreateFriendship(members[i], members[j], status)
		return err
	}

	for i := range members {
		for d := 1; d <= degree/2+degree%2; d++ {
			if err := link(i, (i+d)%n, models.FriendshipStatusAccepted); err != nil {
				return 0, fmt.Errorf("seed friendships: %w", err)
			}
		}
		if err := link(i, (i+degree+1)%n, models.FriendshipStatusPending); err != nil {
			return 0, fmt.Errorf("seed friend requests: %w", err)
		}
	}
	middleware.Logger.Info("seed: friendships created", slog.Int("count", len(seen)))
	return len(seen), nil
}

// SeedPosts writes perMember posts for every member using mix.
func (s *Seeder) SeedPosts(members []*models.Profile, perMember int, mix PrivacyMix) (int, error) {
	if mix.Public+mix.Friends+mix.Private == 0 {
		mix = defaultMix
	}
	posts := make([]*models.Post, 0, len(members)*perMember)
	for _, m := range members {
		for i := 0; i < perMember; i++ {
			posts = append(posts, s.factory.BuildPost(m, s.factory.pickPrivacy(mix)))
		}
	}
	if err := s.factory.CreatePosts(posts, s.opts.BatchSize); err != nil {
		return 0, fmt.Errorf("seed posts: %w", err)
	}
	middleware.Logger.Info("seed: posts created", slog.Int("count", len(posts)))
	return len(posts), nil
}

// Run seeds from a preset.
func (s *Seeder) Run(p Preset) error {
	members, err := s.SeedMembers(p.Members, p.RandomMembers+len(p.Members))
	if err != nil {
		return err
	}
	if _, err := s.SeedSocialMesh(members, p.FriendDegree); err != nil {
		return err
	}
	_, err = s.SeedPosts(members, p.PostsPerMember, p.Privacy)
	return err
}
