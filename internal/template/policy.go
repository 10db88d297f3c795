package template

import "cvforge/internal/subscription"

// Policy 决定模板访问与简历创建配额。
// UnlockAll 是仅供非生产环境的全局放行开关，必须在构造时显式注入，
// 生产部署要求其为 false。
type Policy struct {
	UnlockAll      bool
	FreeMaxResumes int
}

// NewPolicy 构造访问策略。
func NewPolicy(unlockAll bool, freeMaxResumes int) Policy {
	return Policy{
		UnlockAll:      unlockAll,
		FreeMaxResumes: freeMaxResumes,
	}
}

// CanAccess 判定 level 档位能否使用 templateID 模板。
// 未知模板一律拒绝。
func (p Policy) CanAccess(templateID string, level subscription.Level) bool {
	t, ok := ByID(templateID)
	if !ok {
		return false
	}
	if p.UnlockAll {
		return true
	}
	return level.Rank() >= t.Tier.Rank()
}

// CanCreateResume 判定 level 档位在已有 currentCount 份简历时能否再建一份。
// free 档位要求 currentCount 严格小于配额；pro 及以上不设限。
func (p Policy) CanCreateResume(level subscription.Level, currentCount int) bool {
	if level != subscription.LevelFree {
		return true
	}
	return currentCount < p.FreeMaxResumes
}
