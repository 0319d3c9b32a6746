package strm

import (
	"path"
	"strconv"
	"strings"
)

// NormalizePath converts an inner path to its canonical forward-slash form.
//
// It performs the following transformations:
//   - Converts backslashes: `chara\hero\body.mdl` → "chara/hero/body.mdl"
//   - Strips leading and trailing slashes: "/chara/" → "chara"
//   - Collapses consecutive slashes: "chara//hero" → "chara/hero"
//
// Case is preserved; comparisons use [PathsEqual].
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.Trim(p, "/")
	if !strings.Contains(p, "//") {
		return p
	}

	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	return strings.Join(result, "/")
}

// PathsEqual reports whether two inner paths name the same asset: equal after
// normalization, ignoring case.
func PathsEqual(a, b string) bool {
	return strings.EqualFold(NormalizePath(a), NormalizePath(b))
}

// variantExts lists extensions whose loose files carry a per-variant name.
var variantExts = map[string]struct{}{
	".anm": {},
	".dds": {},
	".mdl": {},
	".mtl": {},
	".png": {},
	".tga": {},
}

// LooseFileName returns the slash-separated file name used for an entry when
// it is stored as a loose file.
//
// Non-default flags on extensions with per-variant names get an ".alt<flag>"
// infix before the extension, so "tex/hero.dds" with SkinAltA becomes
// "tex/hero.alt2.dds". Other paths are returned normalized and unchanged.
// Matching inside an archive never uses this name.
func LooseFileName(innerPath string, flag SkinFlag) string {
	p := NormalizePath(innerPath)
	if flag == SkinDefault {
		return p
	}
	ext := path.Ext(p)
	if _, ok := variantExts[strings.ToLower(ext)]; !ok {
		return p
	}
	return strings.TrimSuffix(p, ext) + ".alt" + strconv.Itoa(int(flag)) + ext
}
