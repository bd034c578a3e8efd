package artifact

import (
	"regexp"
	"strings"
)

// SnapshotSuffix 是非时间戳快照版本的固定后缀。
const SnapshotSuffix = "SNAPSHOT"

// uniqueSnapshot 匹配 1.0-20070522.143249-1 形式的时间戳快照。
var uniqueSnapshot = regexp.MustCompile(`^(.*)-([0-9]{8}\.[0-9]{6})-([0-9]+)$`)

// versionTokenPatterns 判断一个以 '-' 切分的片段是否像版本号。
var versionTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[0-9][_.0-9a-z]*$`),
	regexp.MustCompile(`^snapshot$`),
	regexp.MustCompile(`^g?[_.0-9ab]*(pre|rc|g|m)[_.0-9]*$`),
	regexp.MustCompile(`^dev[_.0-9]*$`),
	regexp.MustCompile(`^alpha[_.0-9]*$`),
	regexp.MustCompile(`^beta[_.0-9]*$`),
	regexp.MustCompile(`^rc[_.0-9]*$`),
	regexp.MustCompile(`^debug[_.0-9]*$`),
	regexp.MustCompile(`^unofficial[_.0-9]*$`),
	regexp.MustCompile(`^current$`),
	regexp.MustCompile(`^latest$`),
	regexp.MustCompile(`^fcs$`),
	regexp.MustCompile(`^release[_.0-9]*$`),
	regexp.MustCompile(`^nightly$`),
	regexp.MustCompile(`^final$`),
	regexp.MustCompile(`^incubating$`),
	regexp.MustCompile(`^incubator$`),
	regexp.MustCompile(`^[ab][_.0-9]+$`),
}

// IsSnapshot 判断版本是否为快照（-SNAPSHOT 或时间戳快照）。
func IsSnapshot(version string) bool {
	if version == "" {
		return false
	}
	if strings.HasSuffix(version, SnapshotSuffix) {
		return true
	}
	return uniqueSnapshot.MatchString(version)
}

// IsUniqueSnapshot 判断版本是否为时间戳快照。
func IsUniqueSnapshot(version string) bool {
	return uniqueSnapshot.MatchString(version)
}

// BaseVersion 将时间戳快照折叠为 -SNAPSHOT 形式，其它版本原样返回。
func BaseVersion(version string) string {
	if m := uniqueSnapshot.FindStringSubmatch(version); m != nil {
		return m[1] + "-" + SnapshotSuffix
	}
	return version
}

// IsVersion 判断路径片段是否像一个版本目录，只看 '-' 切分后的首段。
func IsVersion(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	first, _, _ := strings.Cut(strings.ToLower(token), "-")
	return isVersionToken(first)
}

// IsVersionToken 判断单个 '-' 片段是否可以作为版本组成部分。
func IsVersionToken(part string) bool {
	return isVersionToken(strings.ToLower(part))
}

func isVersionToken(part string) bool {
	if part == "" {
		return false
	}
	for _, pattern := range versionTokenPatterns {
		if pattern.MatchString(part) {
			return true
		}
	}
	return false
}
