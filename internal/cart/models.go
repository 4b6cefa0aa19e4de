package cart

// Kind discriminates what a line sells.
type Kind string

const (
	KindTicket  Kind = "TICKET"
	KindProduct Kind = "PRODUCT"
)

// IsValid checks if the kind is one of the known kinds
func (k Kind) IsValid() bool {
	switch k {
	case KindTicket, KindProduct:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// Key is the identity of a line: the catalog item plus an optional variant
// such as a garment size. Two lines never share a Key.
type Key struct {
	CatalogItemID string
	Variant       string
}

// LineItem is one purchasable entry in the cart.
type LineItem struct {
	CatalogItemID string
	Variant       string
	Kind          Kind
	DisplayName   string
	UnitPrice     int64 // minor currency units
	Quantity      int
	DetailText    string
	// ReferenceID is the id sent to the remote catalog; legacy lines may lack it.
	ReferenceID string
	// SeatIDs is only meaningful for tickets.
	SeatIDs []string
	// NeedsReselection is set when the hold backing SeatIDs expired.
	NeedsReselection bool
}

// Key returns the identity of the line
func (l LineItem) Key() Key {
	return Key{CatalogItemID: l.CatalogItemID, Variant: l.Variant}
}

// Subtotal is UnitPrice × Quantity
func (l LineItem) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// HasSeats reports whether the line is a ticket bound to specific seats
func (l LineItem) HasSeats() bool {
	return l.Kind == KindTicket && len(l.SeatIDs) > 0
}

func (l LineItem) clone() LineItem {
	if l.SeatIDs != nil {
		l.SeatIDs = append([]string(nil), l.SeatIDs...)
	}
	return l
}

// NewTicketLine builds a ticket line bound to the given seats.
func NewTicketLine(catalogItemID, referenceID, name string, unitPrice int64, quantity int, seatIDs ...string) LineItem {
	return LineItem{
		CatalogItemID: catalogItemID,
		Kind:          KindTicket,
		DisplayName:   name,
		UnitPrice:     unitPrice,
		Quantity:      quantity,
		ReferenceID:   referenceID,
		SeatIDs:       dedupe(seatIDs),
	}
}

// NewProductLine builds a merchandise line; variant may be empty.
func NewProductLine(catalogItemID, variant, referenceID, name string, unitPrice int64, quantity int) LineItem {
	return LineItem{
		CatalogItemID: catalogItemID,
		Variant:       variant,
		Kind:          KindProduct,
		DisplayName:   name,
		UnitPrice:     unitPrice,
		Quantity:      quantity,
		ReferenceID:   referenceID,
	}
}

// dedupe keeps first occurrences, preserving order
func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
