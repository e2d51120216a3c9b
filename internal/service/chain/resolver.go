// Package chain computes what clients see of a conversation: every user
// message plus only the current version of each bot reply chain.
package chain

import (
	"sort"

	"parley/internal/domain/models"
)

// RootID returns the chain key of a message: its chain root, or itself.
func RootID(m *models.Message) int64 {
	return m.RootID()
}

// ResolveVisible reduces a conversation's raw rows to the visible set.
//
// Bot messages are grouped by RootID; within a group the message with the
// greatest VersionPosition wins, ties broken by the greatest ID. User messages
// pass through. The output is not ordered; see SortForDisplay.
func ResolveVisible(msgs []models.Message) []models.Message {
	current := make(map[int64]int, len(msgs)) // root id -> index into msgs
	visible := make([]models.Message, 0, len(msgs))

	for i := range msgs {
		m := &msgs[i]
		if !m.IsBot() {
			visible = append(visible, *m)
			continue
		}

		root := m.RootID()
		best, seen := current[root]
		if !seen || newer(m, &msgs[best]) {
			current[root] = i
		}
	}

	for _, idx := range current {
		visible = append(visible, msgs[idx])
	}
	return visible
}

func newer(a, b *models.Message) bool {
	if a.VersionPosition != b.VersionPosition {
		return a.VersionPosition > b.VersionPosition
	}
	return a.ID > b.ID
}

// SortForDisplay orders messages by creation time ascending. At equal
// timestamps user messages come before bot messages, then lower IDs first.
func SortForDisplay(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Sender != b.Sender {
			return a.Sender == models.SenderUser
		}
		return a.ID < b.ID
	})
}

// Summaries converts a chain's versions into the ascending version list
// shown in version pickers.
func Summaries(versions []models.Message) []models.VersionSummary {
	sorted := make([]models.Message, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].VersionPosition != sorted[j].VersionPosition {
			return sorted[i].VersionPosition < sorted[j].VersionPosition
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := make([]models.VersionSummary, len(sorted))
	for i, v := range sorted {
		out[i] = models.VersionSummary{
			Position:  v.VersionPosition,
			MessageID: v.ID,
			Content:   v.Content,
			Status:    v.Status,
			CreatedAt: v.CreatedAt,
		}
	}
	return out
}

// Window returns the page-th slice (1-based) of perPage items.
func Window[T any](items []T, page, perPage int) []T {
	if page < 1 || perPage < 1 {
		return []T{}
	}
	if len(items) == 0 || page-1 >= LastPage(len(items), perPage) {
		return []T{}
	}
	start := (page - 1) * perPage
	end := min(start+perPage, len(items))
	return items[start:end]
}

// LastPage returns the number of pages needed for total items, at least 1.
func LastPage(total, perPage int) int {
	if perPage < 1 || total == 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
