package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tickzen/internal/models"
)

func TestNextAuthorIndex(t *testing.T) {
	tests := []struct {
		name      string
		lastIndex int
		n         int
		want      int
	}{
		{"sentinel starts at zero", -1, 3, 0},
		{"advances", 0, 3, 1},
		{"wraps at end", 2, 3, 0},
		{"list shrank", 4, 3, 2},
		{"list shrank to one", 5, 1, 0},
		{"negative garbage", -7, 2, 0},
		{"no authors", 0, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextAuthorIndex(tt.lastIndex, tt.n))
		})
	}
}

func TestNextAuthor_RoundRobinFromPersistedIndex(t *testing.T) {
	authors := []models.Author{{Username: "a"}, {Username: "b"}, {Username: "c"}}
	st := models.NewProfileState("2026-03-02")
	st.LastAuthorIndex = 1

	var picked []string
	for i := 0; i < 7; i++ {
		a, ok := NextAuthor(st, authors)
		require.True(t, ok)
		picked = append(picked, a.Username)
	}

	assert.Equal(t, []string{"c", "a", "b", "c", "a", "b", "c"}, picked)
	assert.Equal(t, 2, st.LastAuthorIndex)
}

func TestNextAuthor_FairOverManyPicks(t *testing.T) {
	authors := []models.Author{{Username: "a"}, {Username: "b"}, {Username: "c"}, {Username: "d"}}
	st := models.NewProfileState("2026-03-02")

	counts := map[string]int{}
	const n = 23
	for i := 0; i < n; i++ {
		a, _ := NextAuthor(st, authors)
		counts[a.Username]++
	}
	for _, a := range authors {
		assert.GreaterOrEqual(t, counts[a.Username], n/len(authors))
	}
}

func TestNextAuthor_NoAuthors(t *testing.T) {
	st := models.NewProfileState("2026-03-02")
	_, ok := NextAuthor(st, nil)
	assert.False(t, ok)
	assert.Equal(t, -1, st.LastAuthorIndex)
}

func TestClampAuthorIndex(t *testing.T) {
	st := models.NewProfileState("2026-03-02")
	st.LastAuthorIndex = 5
	ClampAuthorIndex(st, 2)
	assert.Equal(t, 1, st.LastAuthorIndex)

	st.LastAuthorIndex = -1
	ClampAuthorIndex(st, 2)
	assert.Equal(t, -1, st.LastAuthorIndex)

	st.LastAuthorIndex = 1
	ClampAuthorIndex(st, 3)
	assert.Equal(t, 1, st.LastAuthorIndex)
}

func TestClampAuthorIndex_KeepsRotationOrder(t *testing.T) {
	authors := []models.Author{{Username: "A"}, {Username: "B"}, {Username: "C"}}
	st := models.NewProfileState("2026-03-02")
	st.LastAuthorIndex = 4

	ClampAuthorIndex(st, len(authors))
	a, ok := NextAuthor(st, authors)
	require.True(t, ok)
	assert.Equal(t, "C", a.Username)
}
