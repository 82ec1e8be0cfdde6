package service

import "strings"

// SplitTerms 把逗号分隔的关键词串拆成小写词表，去掉空白项
func SplitTerms(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

// containsAny 判断标题是否包含词表中任意一个词（子串匹配，不做分词）
func containsAny(title string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(title, t) {
			return true
		}
	}
	return false
}

// PassesFilter 仅以标题为依据应用全局/局部关键词过滤。
// 规则：排除词（全局与局部取并集）命中任意一个立即淘汰；
// 全局包含词非空时必须至少命中一个；局部包含词非空时同样必须独立命中。
// 匹配是子串级别的，词可以命中标题中任何位置，包括其他单词内部，
// 这是与历史行为保持兼容的有意简化。
func PassesFilter(title, globalInclude, globalExclude, localInclude, localExclude string) bool {
	text := strings.ToLower(strings.TrimSpace(title))

	exclude := append(SplitTerms(globalExclude), SplitTerms(localExclude)...)
	if containsAny(text, exclude) {
		return false
	}

	if gInc := SplitTerms(globalInclude); len(gInc) > 0 && !containsAny(text, gInc) {
		return false
	}

	if lInc := SplitTerms(localInclude); len(lInc) > 0 && !containsAny(text, lInc) {
		return false
	}

	return true
}
