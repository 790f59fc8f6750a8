package view

const (
	boardDescriptionLimit = 140
	tableDescriptionLimit = 80
)

// TruncateBoard shortens a description for a board card.
func TruncateBoard(s string) string { return truncate(s, boardDescriptionLimit) }

// TruncateTable shortens a description for a table row.
func TruncateTable(s string) string { return truncate(s, tableDescriptionLimit) }

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
