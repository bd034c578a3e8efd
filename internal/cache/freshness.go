package cache

import (
	"path"
	"strings"
	"time"

	"github.com/any-hub/artifact-hub/internal/artifact"
	"github.com/any-hub/artifact-hub/internal/layout"
)

// Freshness 判断本地条目是否可以不经源站直接返回：
// 正式版本制品提交后永不过期；metadata 与快照路径在 MetadataTTL 内视为新鲜。
type Freshness struct {
	metadataTTL time.Duration
	now         func() time.Time
}

// NewFreshness 构造新鲜度判定器，默认使用 time.Now 作为时钟。
func NewFreshness(metadataTTL time.Duration) Freshness {
	return Freshness{
		metadataTTL: metadataTTL,
		now:         time.Now,
	}
}

// IsFresh 返回 entry 是否仍可直接复用。
func (f Freshness) IsFresh(entry Entry) bool {
	if !IsVolatile(entry.Path) {
		return true
	}
	if f.metadataTTL <= 0 {
		return false
	}
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return now().Before(entry.ModTime.Add(f.metadataTTL))
}

// IsVolatile 判断路径内容是否会随时间变化（metadata 或快照）。
func IsVolatile(rel string) bool {
	segs := layout.SplitPath(rel)
	if len(segs) == 0 {
		return false
	}
	last := segs[len(segs)-1]
	if isMetadata(last) {
		return true
	}
	for _, seg := range segs[:len(segs)-1] {
		if artifact.IsSnapshot(seg) {
			return true
		}
	}
	return artifact.IsSnapshot(strings.TrimSuffix(last, path.Ext(last)))
}

// IsMetadataPath 判断路径是否为 metadata 或其校验文件。
func IsMetadataPath(rel string) bool {
	segs := layout.SplitPath(rel)
	return len(segs) > 0 && isMetadata(segs[len(segs)-1])
}

func isMetadata(name string) bool {
	return layout.IsMetadataFilename(name) || strings.HasPrefix(name, layout.MetadataFilename+".")
}
