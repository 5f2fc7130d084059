// Package featureflags evaluates FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"

	"kinship/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Flags consulted by the server.
const (
	Signup   = "signup"
	Realtime = "realtime"
	Web      = "web"
)

// Manager evaluates flags from a comma-separated list.
// A bare name means on. Example: "signup,realtime=off,web=25%".
type Manager struct {
	flags map[string]string
}

// NewManager parses raw.
func NewManager(raw string) *Manager {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = normalize(key)
		if key == "" {
			continue
		}
		value = normalize(value)
		if !found {
			value = "on"
		}
		if value == "" {
			continue
		}
		out[key] = value
	}
	return &Manager{flags: out}
}

// Enabled evaluates name for an account. Percent rollouts need a non-nil account.
func (m *Manager) Enabled(name string, accountID uuid.UUID) bool {
	if m == nil {
		return false
	}
	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil || pct <= 0:
		return false
	case pct >= 100:
		return true
	case accountID == uuid.Nil:
		return false
	}
	return rolloutBucket(name, accountID) < pct
}

// On evaluates a flag that does not depend on who is asking.
func (m *Manager) On(name string) bool {
	return m.Enabled(name, uuid.Nil)
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one account.
func (m *Manager) Snapshot(accountID uuid.UUID) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, accountID)
	}
	return out
}

// Require hides a route behind a flag; disabled routes answer 404.
func (m *Manager) Require(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, _ := c.Locals("userID").(uuid.UUID)
		if !m.Enabled(name, uid) {
			return models.RespondWithAppError(c, models.NewNotFoundError("Route", c.Path()))
		}
		return c.Next()
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, accountID uuid.UUID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + accountID.String()))
	return int(h.Sum32() % 100)
}
