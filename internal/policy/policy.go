// Package policy decides which rows a requester may read or change.
//
// Every (table, operation) pair maps to a Rule. Pairs without a rule deny.
// List reads use the matching GORM scopes so the same predicates run in SQL.
package policy

import (
	"context"
	"fmt"

	"kinship/internal/models"
	"kinship/internal/observability"

	"github.com/google/uuid"
)

// Table names a protected table.
type Table string

const (
	Profiles    Table = "profiles"
	Posts       Table = "posts"
	Friendships Table = "friendships"
)

// Operation is the kind of access being checked.
type Operation string

const (
	Select Operation = "select"
	Insert Operation = "insert"
	Update Operation = "update"
	Delete Operation = "delete"
)

// Anonymous is the requester id used for unauthenticated reads.
var Anonymous = uuid.Nil

// Relations answers the relationship questions rules depend on.
type Relations interface {
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// Rule reports whether subject may perform the operation on row.
type Rule func(ctx context.Context, rel Relations, subject uuid.UUID, row any) (bool, error)

// FriendshipChange is the row passed to friendships/update.
type FriendshipChange struct {
	Current  *models.Friendship
	Proposed *models.Friendship
}

type key struct {
	table Table
	op    Operation
}

// Engine evaluates rules.
type Engine struct {
	rules map[key]Rule
	rel   Relations
}

// NewEngine returns an engine loaded with the default rule set.
func NewEngine(rel Relations) *Engine {
	e := &Engine{rules: make(map[key]Rule), rel: rel}

	e.Register(Profiles, Select, allowAll)
	e.Register(Profiles, Insert, profileSelf)
	e.Register(Profiles, Update, profileSelf)

	e.Register(Posts, Select, postVisible)
	e.Register(Posts, Insert, postOwner)
	e.Register(Posts, Update, postOwner)
	e.Register(Posts, Delete, postOwner)

	e.Register(Friendships, Select, friendshipParticipant)
	e.Register(Friendships, Insert, friendshipSender)
	e.Register(Friendships, Update, friendshipStatusChange)
	e.Register(Friendships, Delete, friendshipParticipant)
	return e
}

// Register sets or replaces the rule for a pair.
func (e *Engine) Register(t Table, op Operation, r Rule) {
	e.rules[key{t, op}] = r
}

// Allowed reports whether subject may perform op on row.
func (e *Engine) Allowed(ctx context.Context, t Table, op Operation, subject uuid.UUID, row any) (bool, error) {
	rule, ok := e.rules[key{t, op}]
	if !ok {
		return false, nil
	}
	return rule(ctx, e.rel, subject, row)
}

// Authorize returns a FORBIDDEN AppError when the rule denies.
func (e *Engine) Authorize(ctx context.Context, t Table, op Operation, subject uuid.UUID, row any) error {
	ok, err := e.Allowed(ctx, t, op, subject, row)
	if err != nil {
		return models.NewInternalError(fmt.Errorf("policy %s/%s: %w", t, op, err))
	}
	if !ok {
		observability.PolicyDenials.WithLabelValues(string(t), string(op)).Inc()
		return models.NewForbiddenError(fmt.Sprintf("not allowed to %s %s", op, t))
	}
	return nil
}

// AuthorizeRead is Authorize for single-row reads; a denial looks like a missing row.
func (e *Engine) AuthorizeRead(ctx context.Context, t Table, subject uuid.UUID, id uuid.UUID, row any) error {
	ok, err := e.Allowed(ctx, t, Select, subject, row)
	if err != nil {
		return models.NewInternalError(fmt.Errorf("policy %s/select: %w", t, err))
	}
	if !ok {
		observability.PolicyDenials.WithLabelValues(string(t), string(Select)).Inc()
		return models.NewNotFoundError(resourceName(t), id)
	}
	return nil
}

func resourceName(t Table) string {
	switch t {
	case Posts:
		return "Post"
	case Friendships:
		return "Friendship"
	default:
		return "Profile"
	}
}
