package schedule

import (
	"github.com/bobmcallan/tickzen/internal/models"
)

// NextAuthorIndex returns the index following lastIndex in a list of n authors,
// wrapping at the end. A lastIndex outside the list (the -1 sentinel, or a list
// that shrank) is first reduced modulo n. Returns -1 when n is 0.
func NextAuthorIndex(lastIndex, n int) int {
	if n <= 0 {
		return -1
	}
	if lastIndex < 0 {
		return 0
	}
	return (lastIndex%n + 1) % n
}

// ClampAuthorIndex brings a persisted rotation cursor back inside a list of n
// authors. The next author chosen is unchanged by clamping.
func ClampAuthorIndex(st *models.ProfileState, n int) {
	if n <= 0 || st.LastAuthorIndex < 0 {
		return
	}
	st.LastAuthorIndex %= n
}

// NextAuthor selects the next author for the profile and records the choice
// in the state's rotation cursor.
func NextAuthor(st *models.ProfileState, authors []models.Author) (models.Author, bool) {
	idx := NextAuthorIndex(st.LastAuthorIndex, len(authors))
	if idx < 0 {
		return models.Author{}, false
	}
	st.LastAuthorIndex = idx
	return authors[idx], true
}
