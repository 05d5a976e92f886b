package articles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func window(id int64, start, end time.Time) Article {
	return Article{ID: id, Title: "a", Body: "b", StartDate: start, EndDate: end}
}

func ids(list []Article) []int64 {
	out := make([]int64, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestSelectActiveWindowContainsNow(t *testing.T) {
	a1 := window(1, date(2025, time.January, 1), date(2025, time.January, 31))

	active := SelectActive([]Article{a1}, date(2025, time.January, 15))
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)

	assert.Empty(t, SelectActive([]Article{a1}, date(2025, time.February, 1)))
}

func TestSelectActiveBoundsAreInclusive(t *testing.T) {
	a := window(1, date(2025, time.March, 10), date(2025, time.March, 20))

	assert.Len(t, SelectActive([]Article{a}, date(2025, time.March, 10)), 1)
	assert.Len(t, SelectActive([]Article{a}, date(2025, time.March, 20)), 1)
	assert.Empty(t, SelectActive([]Article{a}, date(2025, time.March, 9)))
	assert.Empty(t, SelectActive([]Article{a}, date(2025, time.March, 21)))
}

func TestSelectActiveInvertedWindowNeverMatches(t *testing.T) {
	// EndDate before StartDate is permitted on write; such an article is
	// simply never active.
	a := window(1, date(2025, time.June, 30), date(2025, time.June, 1))

	for _, now := range []time.Time{
		date(2025, time.May, 15),
		date(2025, time.June, 15),
		date(2025, time.July, 15),
	} {
		assert.Empty(t, SelectActive([]Article{a}, now), "now=%s", now)
	}
}

func TestSelectActivePreservesCatalogOrder(t *testing.T) {
	catalog := []Article{
		window(3, date(2025, time.January, 1), date(2025, time.December, 31)),
		window(1, date(2025, time.January, 1), date(2025, time.December, 31)),
		window(2, date(2026, time.January, 1), date(2026, time.December, 31)),
	}

	active := SelectActive(catalog, date(2025, time.July, 1))
	assert.Equal(t, []int64{3, 1}, ids(active))
}

func TestSelectByRangeBothBoundsIsOverlapNotContainment(t *testing.T) {
	// A2 window [Jan 10, Jan 20] is not contained in [Jan 1, Jan 15] but
	// overlaps it on Jan 10-15.
	a2 := window(2, date(2025, time.January, 10), date(2025, time.January, 20))

	overlapping := SelectByRange([]Article{a2}, DateRange{
		Start: datePtr(2025, time.January, 1),
		End:   datePtr(2025, time.January, 15),
	})
	assert.Equal(t, []int64{2}, ids(overlapping))

	disjoint := SelectByRange([]Article{a2}, DateRange{
		Start: datePtr(2025, time.January, 21),
		End:   datePtr(2025, time.January, 31),
	})
	assert.Empty(t, disjoint)
}

func TestSelectByRangeStartOnlyFiltersByStartDate(t *testing.T) {
	// Start-only is a "starts no earlier than" filter, not an overlap
	// filter: an article already running before the bound is excluded even
	// though it is still live.
	early := window(1, date(2025, time.January, 1), date(2025, time.December, 31))
	late := window(2, date(2025, time.June, 1), date(2025, time.June, 30))

	got := SelectByRange([]Article{early, late}, DateRange{Start: datePtr(2025, time.March, 1)})
	assert.Equal(t, []int64{2}, ids(got))
}

func TestSelectByRangeEndOnlyFiltersByEndDate(t *testing.T) {
	early := window(1, date(2025, time.January, 1), date(2025, time.February, 28))
	late := window(2, date(2025, time.January, 1), date(2025, time.December, 31))

	got := SelectByRange([]Article{early, late}, DateRange{End: datePtr(2025, time.March, 1)})
	assert.Equal(t, []int64{1}, ids(got))
}

func TestSelectByRangeNoBoundsReturnsFullCatalog(t *testing.T) {
	catalog := []Article{
		window(1, date(2025, time.January, 1), date(2025, time.January, 2)),
		window(2, date(2030, time.January, 1), date(2030, time.January, 2)),
	}

	got := SelectByRange(catalog, DateRange{})
	assert.Equal(t, []int64{1, 2}, ids(got))
}

func TestSelectByRangeBoundsAreInclusive(t *testing.T) {
	a := window(1, date(2025, time.April, 10), date(2025, time.April, 20))

	// Query range touching the window only at its start day.
	touching := SelectByRange([]Article{a}, DateRange{
		Start: datePtr(2025, time.April, 1),
		End:   datePtr(2025, time.April, 10),
	})
	assert.Len(t, touching, 1)

	// And only at its end day.
	touching = SelectByRange([]Article{a}, DateRange{
		Start: datePtr(2025, time.April, 20),
		End:   datePtr(2025, time.April, 30),
	})
	assert.Len(t, touching, 1)
}
