package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/xrash/smetrics"
)

// NormalizeTitle 标准化标题用于指纹计算：小写，仅保留字母和数字。
// 这样转载稿之间的标点差异不会产生不同指纹。
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fingerprint 基于标准化标题和发布日期（天粒度）生成确定性指纹。
// 同一标题在不同日期视为不同新闻，同一天内重复抓取则视为同一条。
func Fingerprint(title string, published time.Time) string {
	hasher := sha256.New()
	hasher.Write([]byte(NormalizeTitle(title)))
	digest := hex.EncodeToString(hasher.Sum(nil))
	return published.Format("2006-01-02") + "_" + digest[:16]
}

// ShortHash 返回标准化标题哈希的短形式，用于文件名
func ShortHash(title string) string {
	hasher := sha256.New()
	hasher.Write([]byte(NormalizeTitle(title)))
	return hex.EncodeToString(hasher.Sum(nil))[:8]
}

// windowEntry 是模糊比对窗口里的一条近期标题
type windowEntry struct {
	title     string // 标准化后的标题
	day       string // 发布日期，"2006-01-02"
	firstSeen time.Time
}

// DedupCache 是进程内的去重缓存：指纹集合外加一个有界的近期标题窗口，
// 可选地对窗口做模糊相似度比对以拦截换了前缀或被编辑过的重复稿。
// 模糊比对与指纹一样以天为界，同一标题在不同日期是不同新闻。
// 缓存可以在进程启动时从磁盘记录重建，过期条目由定期清理统一驱逐。
type DedupCache struct {
	entries map[string]time.Time // 指纹 -> 首见时间（取发布时间）
	window  []windowEntry        // 近期标准化标题，有界
	fuzzy   bool
	ratio   float64
	maxSize int
}

// NewDedupCache 创建去重缓存。fuzzy 开启时对 window 内的标题做相似度比对，
// windowSize 限定比对成本的上界。
func NewDedupCache(fuzzy bool, ratio float64, windowSize int) *DedupCache {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.85
	}
	if windowSize <= 0 {
		windowSize = 500
	}
	return &DedupCache{
		entries: make(map[string]time.Time),
		fuzzy:   fuzzy,
		ratio:   ratio,
		maxSize: windowSize,
	}
}

// IsDuplicate 判断标题在其发布日期内是否已经出现过
func (c *DedupCache) IsDuplicate(title string, published time.Time) bool {
	if _, ok := c.entries[Fingerprint(title, published)]; ok {
		return true
	}
	if !c.fuzzy {
		return false
	}

	normalized := NormalizeTitle(title)
	if normalized == "" {
		return false
	}
	day := published.Format("2006-01-02")
	for _, seen := range c.window {
		// 只和同一天的标题比对，跨天的同名标题是新的一条新闻
		if seen.day != day {
			continue
		}
		if similarity(normalized, seen.title) >= c.ratio {
			return true
		}
	}
	return false
}

// Record 登记一条新标题
func (c *DedupCache) Record(title string, published time.Time) {
	c.entries[Fingerprint(title, published)] = published

	if !c.fuzzy {
		return
	}
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return
	}
	c.window = append(c.window, windowEntry{
		title:     normalized,
		day:       published.Format("2006-01-02"),
		firstSeen: published,
	})
	if len(c.window) > c.maxSize {
		c.window = c.window[len(c.window)-c.maxSize:]
	}
}

// EvictExpired 驱逐首见时间早于 TTL 的指纹和窗口条目，返回驱逐的指纹数量。
// 由清理周期统一调用，不在每次查询时触发。
func (c *DedupCache) EvictExpired(ttl time.Duration, now time.Time) int {
	cutoff := now.Add(-ttl)
	evicted := 0
	for fp, firstSeen := range c.entries {
		if firstSeen.Before(cutoff) {
			delete(c.entries, fp)
			evicted++
		}
	}

	if len(c.window) > 0 {
		kept := c.window[:0]
		for _, e := range c.window {
			if !e.firstSeen.Before(cutoff) {
				kept = append(kept, e)
			}
		}
		c.window = kept
	}
	return evicted
}

// Len 返回当前指纹条目数
func (c *DedupCache) Len() int {
	return len(c.entries)
}

// similarity 计算两个标准化标题的相似度比例（0~1）。
// 采用替换计为2的编辑距离，与 2M/(len(a)+len(b)) 形式的比率一致。
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	dist := smetrics.WagnerFischer(a, b, 1, 1, 2)
	r := 1 - float64(dist)/float64(total)
	if r < 0 {
		return 0
	}
	return r
}
