package automod

import "github.com/Gopher0727/automod/internal/models"

// FilterActionsByStrikes 按 strike 阈值筛选可执行的动作
// 实现逻辑：阈值 <= 1 的动作总是执行；否则按动作的计数口径（Guild 全局或单个触发器）
// 与阈值比较，计数达到阈值即执行。保持原有顺序
func FilterActionsByStrikes(actions []models.Action, globalCount, triggerCount int64) []models.Action {
	armed := make([]models.Action, 0, len(actions))
	for _, action := range actions {
		if armedByStrikes(&action, globalCount, triggerCount) {
			armed = append(armed, action)
		}
	}
	return armed
}

func armedByStrikes(action *models.Action, globalCount, triggerCount int64) bool {
	if action.Strikes <= 1 {
		return true
	}
	if action.UseGlobalStrikes {
		return globalCount >= int64(action.Strikes)
	}
	return triggerCount >= int64(action.Strikes)
}
