package ledger

const (
	// PointsPerCoin: 10 баллов = 1 монета CAMLY
	PointsPerCoin int64 = 10
	// MinimumClaim: минимум баллов для вывода
	MinimumClaim int64 = 100
)

// Claimable: сколько баллов можно вывести и сколько монет за них получить.
type Claimable struct {
	Points int64 `json:"points"`
	Coin   int64 `json:"coin"`
}

// PointsToCoin переводит баллы в монеты с округлением вниз.
// Отрицательный вход не обрезается: PointsToCoin(-1) == -1.
func PointsToCoin(points int64) int64 {
	q := points / PointsPerCoin
	if points%PointsPerCoin != 0 && points < 0 {
		q--
	}
	return q
}

// IsClaimEligible: баллов хватает на вывод.
func IsClaimEligible(points int64) bool {
	return points >= MinimumClaim
}

// ClaimableAmount округляет баллы вниз до кратного курсу.
// Остаток не выводится и ждёт следующего вывода.
//
//	ClaimableAmount(257) → {Points: 250, Coin: 25}
func ClaimableAmount(points int64) Claimable {
	if points <= 0 {
		return Claimable{}
	}
	coin := PointsToCoin(points)
	return Claimable{Points: coin * PointsPerCoin, Coin: coin}
}
