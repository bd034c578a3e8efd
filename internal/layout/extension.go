package layout

import "strings"

// typeExtensions 记录类型与文件扩展名不一致的情况，未列出的类型直接使用类型名作为扩展名。
var typeExtensions = map[string]string{
	"maven-plugin":      "jar",
	"maven-archetype":   "jar",
	"ejb":               "jar",
	"ejb-client":        "jar",
	"test-jar":          "jar",
	"java-source":       "jar",
	"javadoc":           "jar",
	"distribution-tgz":  "tar.gz",
	"distribution-bzip": "tar.bz2",
	"distribution-zip":  "zip",
}

// compoundExtensions 需要整体匹配的多段扩展名，按长度优先。
var compoundExtensions = []string{"tar.gz", "tar.bz2"}

// ExtensionForType 返回类型对应的文件扩展名。
func ExtensionForType(typ string) string {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if ext, ok := typeExtensions[typ]; ok {
		return ext
	}
	return typ
}

// TypeFor 根据扩展名与 classifier 推断类型，是 ExtensionForType 的逆映射。
func TypeFor(ext, classifier string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case "tar.gz":
		return "distribution-tgz"
	case "tar.bz2":
		return "distribution-bzip"
	case "jar":
		switch classifier {
		case "sources":
			return "java-source"
		case "javadoc":
			return "javadoc"
		}
	}
	return ext
}

// SplitExtension 将文件名尾部切分为 (stem, ext)，优先识别多段扩展名。
func SplitExtension(name string) (string, string, bool) {
	lower := strings.ToLower(name)
	for _, ext := range compoundExtensions {
		if strings.HasSuffix(lower, "."+ext) && len(name) > len(ext)+1 {
			return name[:len(name)-len(ext)-1], name[len(name)-len(ext):], true
		}
	}
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return name, "", false
	}
	return name[:idx], name[idx+1:], true
}
