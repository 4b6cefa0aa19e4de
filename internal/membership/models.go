package membership

// Tier is a membership level. The set is closed and ordered; see Engine.
type Tier string

const (
	TierPlatinum Tier = "platinum"
	TierGold     Tier = "gold"
	TierSilver   Tier = "silver"
	TierFan      Tier = "fan"
)

func (t Tier) String() string {
	return string(t)
}

// Benefit is one perk of a tier. ID is the stable identity used for diffing;
// Label is display text and may differ between tiers for the same perk.
type Benefit struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// TierConfig is the price and benefit list of a tier.
type TierConfig struct {
	Tier     Tier      `json:"tier"`
	Name     string    `json:"name"`
	Price    int64     `json:"price"` // minor units per year
	Benefits []Benefit `json:"benefits"`
}

// Change describes a committed tier transition
type Change struct {
	From Tier
	To   Tier
}

// DefaultTiers is the standard catalog, best tier first.
func DefaultTiers() []TierConfig {
	presale := Benefit{ID: "presale", Label: "Ticket presale access", Description: "Buy match tickets before general sale"}
	discount := Benefit{ID: "store-discount", Label: "Store discount", Description: "Discount on official merchandise"}
	magazine := Benefit{ID: "magazine", Label: "Club magazine", Description: "Digital club magazine every month"}
	lounge := Benefit{ID: "lounge", Label: "Members lounge", Description: "Lounge access on match days"}
	meet := Benefit{ID: "meet-players", Label: "Meet the players", Description: "One meet-and-greet per season"}
	parking := Benefit{ID: "parking", Label: "Reserved parking", Description: "Parking spot at home matches"}
	newsletter := Benefit{ID: "newsletter", Label: "Newsletter", Description: "Weekly club newsletter"}

	return []TierConfig{
		{Tier: TierPlatinum, Name: "Platinum", Price: 49900, Benefits: []Benefit{presale, discount, magazine, lounge, meet, parking, newsletter}},
		{Tier: TierGold, Name: "Gold", Price: 24900, Benefits: []Benefit{presale, discount, magazine, lounge, newsletter}},
		{Tier: TierSilver, Name: "Silver", Price: 9900, Benefits: []Benefit{presale, magazine, newsletter}},
		{Tier: TierFan, Name: "Fan", Price: 0, Benefits: []Benefit{newsletter}},
	}
}
