package rewards

// CheckKind is the eligibility rule family a catalog entry belongs to.
type CheckKind string

const (
	CheckFirstGame        CheckKind = "first_game"
	CheckFirstGameCreated CheckKind = "first_game_created"
	CheckWins             CheckKind = "wins"
)

// CatalogEntry defines one mintable badge and the rule that earns it.
type CatalogEntry struct {
	Check       CheckKind
	Threshold   int
	BadgeType   string
	Name        string
	Description string
	SourceURL   string
}

// Catalog is the static badge table. The wins tiers are ordered lowest
// threshold first; Decide relies on that order.
var Catalog = []CatalogEntry{
	{
		Check:       CheckFirstGame,
		BadgeType:   "first_game",
		Name:        "First Game",
		Description: "Played a first game of chess on chain",
		SourceURL:   "https://chesschain.io/badges/first_game.png",
	},
	{
		Check:       CheckFirstGameCreated,
		BadgeType:   "first_game_created",
		Name:        "Game Creator",
		Description: "Created a first game of chess on chain",
		SourceURL:   "https://chesschain.io/badges/first_game_created.png",
	},
	{
		Check:       CheckWins,
		Threshold:   1,
		BadgeType:   "wins_1",
		Name:        "First Victory",
		Description: "Won a first game",
		SourceURL:   "https://chesschain.io/badges/wins_1.png",
	},
	{
		Check:       CheckWins,
		Threshold:   10,
		BadgeType:   "wins_10",
		Name:        "Ten Victories",
		Description: "Won ten games",
		SourceURL:   "https://chesschain.io/badges/wins_10.png",
	},
	{
		Check:       CheckWins,
		Threshold:   50,
		BadgeType:   "wins_50",
		Name:        "Fifty Victories",
		Description: "Won fifty games",
		SourceURL:   "https://chesschain.io/badges/wins_50.png",
	},
	{
		Check:       CheckWins,
		Threshold:   100,
		BadgeType:   "wins_100",
		Name:        "Hundred Victories",
		Description: "Won a hundred games",
		SourceURL:   "https://chesschain.io/badges/wins_100.png",
	},
}

// ByBadgeType returns the catalog entry for a badge type, or nil.
func ByBadgeType(badgeType string) *CatalogEntry {
	for i := range Catalog {
		if Catalog[i].BadgeType == badgeType {
			return &Catalog[i]
		}
	}
	return nil
}
