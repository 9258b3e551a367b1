package domain

import (
	"cmp"
	"slices"
)

// SortByTimestamp упорядочивает ходы по времени сервера. Сортировка стабильная:
// при равных timestamp сохраняется порядок входа, заданный поучастниковыми
// списками (один штрих может прийти несколькими ходами за одну миллисекунду).
func SortByTimestamp(moves []Move) {
	slices.SortStableFunc(moves, func(a, b Move) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
}
