package social

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/bookshelf/internal/model"
)

// newTestStore returns a Store with sequential ids ("id-1", "id-2", ...)
// and a clock that advances one second per call.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	var seq int
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return New(
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
}

// addUsers registers users with the given ids and returns the store.
func addUsers(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := s.AddUser(model.User{
			ID:       id,
			Username: "user " + id,
			Email:    id + "@example.com",
		})
		require.NoError(t, err)
	}
}

func idsOf(users []model.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func bookIDs(books []model.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}
