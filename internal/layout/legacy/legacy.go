// Package legacy 实现旧式三段布局：group/<type>s/artifactId-version[-classifier].ext。
//
// 该布局没有 metadata 文件，引用类操作一律返回布局错误。
package legacy

import (
	"strings"

	"github.com/any-hub/artifact-hub/internal/artifact"
	"github.com/any-hub/artifact-hub/internal/layout"
)

// Key 是旧式布局在注册表中的键。
const Key = "legacy"

func init() {
	layout.MustRegister(New())
}

// typeDirectories 记录不遵循 "<type>s" 规则的目录名。
var typeDirectories = map[string]string{
	"java-source":       "java-sources",
	"javadoc":           "javadoc.jars",
	"distribution-tgz":  "distributions",
	"distribution-bzip": "distributions",
	"distribution-zip":  "distributions",
}

var checksumSuffixes = []string{".sha1", ".md5", ".asc"}

// Layout 是无状态的旧式布局实现。
type Layout struct{}

// New 返回旧式布局。
func New() Layout {
	return Layout{}
}

func (Layout) ID() string {
	return Key
}

func (Layout) ToPath(c artifact.Coordinate) string {
	typ, suffix := splitChecksumSuffix(strings.ToLower(strings.TrimSpace(c.Type)))

	var b strings.Builder
	b.WriteString(c.GroupID)
	b.WriteByte('/')
	if c.BaseVersion == "" && c.Version == "" {
		return b.String()
	}
	b.WriteString(directoryForType(typ))
	b.WriteByte('/')
	b.WriteString(c.ArtifactID)
	b.WriteByte('-')
	if c.Version != "" {
		b.WriteString(c.Version)
	} else {
		b.WriteString(c.BaseVersion)
	}
	if c.HasClassifier() {
		b.WriteByte('-')
		b.WriteString(strings.TrimSpace(c.Classifier))
	}
	b.WriteByte('.')
	b.WriteString(layout.ExtensionForType(typ))
	b.WriteString(suffix)
	return b.String()
}

func (Layout) ProjectReferenceToPath(artifact.ProjectReference) string {
	return ""
}

func (Layout) VersionedReferenceToPath(artifact.VersionedReference) string {
	return ""
}

func (Layout) ToCoordinate(path string, strict bool) (artifact.Coordinate, error) {
	segs := layout.SplitPath(path)
	if len(segs) != 3 {
		return artifact.Coordinate{}, layout.Errorf(path, "legacy paths need exactly 3 segments, got %d", len(segs))
	}
	groupID, typeDir, filename := segs[0], segs[1], segs[2]

	body, suffix := splitChecksumSuffix(filename)
	stem, ext, ok := layout.SplitExtension(body)
	if !ok || (ext[0] >= '0' && ext[0] <= '9') {
		return artifact.Coordinate{}, layout.Errorf(path, "filename %s has no extension", filename)
	}

	idx := versionStart(stem)
	if idx < 0 {
		return artifact.Coordinate{}, layout.Errorf(path, "unable to find version in filename %s", filename)
	}
	artifactID := stem[:idx-1]
	tokens := strings.Split(stem[idx:], "-")
	end := 1
	for end < len(tokens) && artifact.IsVersionToken(tokens[end]) {
		end++
	}
	version := strings.Join(tokens[:end], "-")
	classifier := strings.Join(tokens[end:], "-")

	typ, err := typeForDirectory(path, typeDir, ext)
	if err != nil {
		return artifact.Coordinate{}, err
	}
	if strict && layout.ExtensionForType(typ) != strings.ToLower(ext) {
		return artifact.Coordinate{}, layout.Errorf(path, "extension %s does not match type %s", ext, typ)
	}

	return artifact.NewCoordinate(groupID, artifactID, version, classifier, typ+strings.ToLower(suffix)), nil
}

func (Layout) ToProjectReference(path string) (artifact.ProjectReference, error) {
	return artifact.ProjectReference{}, layout.Errorf(path, "legacy layout has no metadata")
}

func (Layout) ToVersionedReference(path string) (artifact.VersionedReference, error) {
	return artifact.VersionedReference{}, layout.Errorf(path, "legacy layout has no metadata")
}

func (l Layout) IsValidPath(path string) bool {
	_, err := l.ToCoordinate(path, false)
	return err == nil
}

func directoryForType(typ string) string {
	if dir, ok := typeDirectories[typ]; ok {
		return dir
	}
	return typ + "s"
}

func typeForDirectory(path, dir, ext string) (string, error) {
	switch dir {
	case "java-sources":
		return "java-source", nil
	case "javadoc.jars":
		return "javadoc", nil
	case "distributions":
		switch strings.ToLower(ext) {
		case "tar.gz":
			return "distribution-tgz", nil
		case "tar.bz2":
			return "distribution-bzip", nil
		case "zip":
			return "distribution-zip", nil
		}
		return "", layout.Errorf(path, "unsupported distribution extension %s", ext)
	}
	if len(dir) < 2 || !strings.HasSuffix(dir, "s") {
		return "", layout.Errorf(path, "type directory %s does not end with 's'", dir)
	}
	return strings.TrimSuffix(dir, "s"), nil
}

// versionStart 返回第一个 "-<digit>" 中数字的位置，找不到时返回 -1。
func versionStart(stem string) int {
	for i := 1; i < len(stem)-1; i++ {
		if stem[i] == '-' && stem[i+1] >= '0' && stem[i+1] <= '9' {
			return i + 1
		}
	}
	return -1
}

func splitChecksumSuffix(name string) (string, string) {
	lower := strings.ToLower(name)
	for _, suffix := range checksumSuffixes {
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)], name[len(name)-len(suffix):]
		}
	}
	return name, ""
}
