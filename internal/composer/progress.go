package composer

// AggregateProgress は1回のアップロードバッチの進捗を集約する。
// 各ファイルの最新の進捗値（0〜100）の算術平均を切り捨てた値を返す。
// 完了したファイルは100として渡すこと。空の場合は0。
//
//	AggregateProgress(50, 100) == 75
func AggregateProgress(values ...int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += clampPercent(v)
	}
	return sum / len(values)
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
