package cart

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemMergesSameIdentity(t *testing.T) {
	s := NewStore()
	line := NewProductLine("p1", "", "ref-p1", "Scarf", 1000, 1)

	s.AddItem(line)
	s.AddItem(line)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, int64(2000), s.Total())
	assert.Equal(t, 2, s.Count())
}

func TestAddItemKeepsVariantsApart(t *testing.T) {
	s := NewStore()
	s.AddItem(NewProductLine("shirt", "M", "ref-shirt-m", "Home shirt", 6000, 1))
	s.AddItem(NewProductLine("shirt", "L", "ref-shirt-l", "Home shirt", 6000, 2))
	s.AddItem(NewProductLine("shirt", "M", "ref-shirt-m", "Home shirt", 6000, 1))

	assert.Equal(t, 2, s.LineCount())
	assert.Equal(t, 4, s.Count())
	assert.Equal(t, int64(24000), s.Total())
}

func TestAddItemMergesSeatsForTickets(t *testing.T) {
	s := NewStore()
	s.AddItem(NewTicketLine("tt-1", "tt-1", "Match day", 5000, 1, "A1"))
	s.AddItem(NewTicketLine("tt-1", "tt-1", "Match day", 5000, 1, "A2", "A1"))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, []string{"A1", "A2"}, lines[0].SeatIDs)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestAddItemIgnoresNonPositiveQuantity(t *testing.T) {
	s := NewStore()
	s.AddItem(NewProductLine("p1", "", "ref", "Mug", 900, 0))
	s.AddItem(NewProductLine("p1", "", "ref", "Mug", 900, -2))

	assert.True(t, s.IsEmpty())
}

func TestUpdateQuantity(t *testing.T) {
	for _, n := range []int{0, -3} {
		t.Run(fmt.Sprintf("n=%d removes the line", n), func(t *testing.T) {
			s := NewStore()
			s.AddItem(NewProductLine("p1", "", "ref", "Mug", 900, 2))

			s.UpdateQuantity("p1", "", n)

			assert.True(t, s.IsEmpty())
			assert.Equal(t, int64(0), s.Total())
		})
	}

	t.Run("positive sets the quantity", func(t *testing.T) {
		s := NewStore()
		s.AddItem(NewProductLine("p1", "", "ref", "Mug", 900, 2))

		s.UpdateQuantity("p1", "", 5)

		assert.Equal(t, 5, s.Count())
		assert.Equal(t, int64(4500), s.Total())
	})

	t.Run("unknown line is ignored", func(t *testing.T) {
		s := NewStore()
		s.UpdateQuantity("missing", "", 3)
		assert.True(t, s.IsEmpty())
	})
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	s := NewStore()
	s.AddItem(NewProductLine("p1", "", "ref", "Mug", 900, 1))

	s.RemoveItem("p1", "")
	s.RemoveItem("p1", "")

	assert.True(t, s.IsEmpty())
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.AddItem(NewProductLine("p1", "", "ref", "Mug", 900, 1))
	s.AddItem(NewTicketLine("t1", "tt-1", "Match", 5000, 1, "A1"))

	s.Clear()

	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Count())
}

func TestLinesReturnsCopy(t *testing.T) {
	s := NewStore()
	s.AddItem(NewTicketLine("t1", "tt-1", "Match", 5000, 1, "A1"))

	lines := s.Lines()
	lines[0].Quantity = 99
	lines[0].SeatIDs[0] = "Z9"

	fresh := s.Lines()
	assert.Equal(t, 1, fresh[0].Quantity)
	assert.Equal(t, []string{"A1"}, fresh[0].SeatIDs)
}

func TestFlagSeatsForReselection(t *testing.T) {
	s := NewStore()
	s.AddItem(NewTicketLine("t1", "tt-1", "Match", 5000, 2, "A1", "A2"))
	s.AddItem(NewTicketLine("t2", "tt-2", "Cup", 3000, 1, "B7"))
	s.AddItem(NewProductLine("p1", "", "ref", "Mug", 900, 1))

	n := s.FlagSeatsForReselection([]string{"A2"})

	assert.Equal(t, 1, n)
	flagged := s.Flagged()
	require.Len(t, flagged, 1)
	assert.Equal(t, "t1", flagged[0].CatalogItemID)
	assert.Equal(t, []string{"A1", "A2", "B7"}, s.SeatIDs())
}

// Random add/update/remove sequences never produce duplicate identities
// and the total always equals the sum over lines.
func TestStoreStaysConsistentUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ids := []string{"a", "b", "c", "d"}
	variants := []string{"", "S", "M"}

	s := NewStore()
	distinctAdded := map[Key]struct{}{}

	for i := 0; i < 2000; i++ {
		id := ids[rng.Intn(len(ids))]
		variant := variants[rng.Intn(len(variants))]

		switch rng.Intn(4) {
		case 0, 1:
			qty := rng.Intn(4) + 1
			s.AddItem(NewProductLine(id, variant, "ref-"+id, id, int64(rng.Intn(5000)), qty))
			distinctAdded[Key{id, variant}] = struct{}{}
		case 2:
			s.UpdateQuantity(id, variant, rng.Intn(6)-2)
		case 3:
			s.RemoveItem(id, variant)
		}

		lines := s.Lines()
		seen := map[Key]struct{}{}
		var sum int64
		for _, l := range lines {
			_, dup := seen[l.Key()]
			require.False(t, dup, "duplicate identity %v", l.Key())
			seen[l.Key()] = struct{}{}
			require.GreaterOrEqual(t, l.Quantity, 1)
			sum += l.UnitPrice * int64(l.Quantity)
		}
		require.LessOrEqual(t, len(lines), len(distinctAdded))
		require.Equal(t, sum, s.Total())
	}
}
