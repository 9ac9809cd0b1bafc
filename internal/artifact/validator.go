package artifact

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
)

// ErrInvalidType is matched by every rejection caused by the extension policy.
var ErrInvalidType = errors.New("invalid artifact type")

// AllowedExtensions lists the artifact types the scan service accepts.
var AllowedExtensions = []string{"exe", "apk"}

// InvalidTypeError reports a candidate whose extension is not allowed.
type InvalidTypeError struct {
	Name      string
	Extension string
}

func (e *InvalidTypeError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("%s: %q has no extension, only .exe and .apk files are supported", ErrInvalidType, e.Name)
	}
	return fmt.Sprintf("%s: .%s is not supported, only .exe and .apk files are supported", ErrInvalidType, e.Extension)
}

func (e *InvalidTypeError) Is(target error) bool {
	return target == ErrInvalidType
}

// Validate accepts or rejects a candidate by extension and returns the artifact handle.
func Validate(c Candidate) (schema.Artifact, error) {
	name := c.Name()
	ext := Extension(name)
	if !allowed(ext) {
		return schema.Artifact{}, &InvalidTypeError{Name: name, Extension: ext}
	}
	size := c.Size()
	if size < 0 {
		return schema.Artifact{}, fmt.Errorf("artifact %s: negative size %d", name, size)
	}
	return schema.Artifact{
		Name:      name,
		SizeBytes: size,
		Extension: ext,
		SizeLabel: SizeLabel(size),
	}, nil
}

// Extension returns the lower-cased suffix after the last dot, or "" when there is none.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func allowed(ext string) bool {
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// SizeLabel renders a byte count as "<value> <unit>" using 1024-based tiers,
// two decimals at most, trailing zeros trimmed.
func SizeLabel(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	tier := 0
	for tier < len(sizeUnits)-1 && bytes >= int64(1)<<(10*(tier+1)) {
		tier++
	}
	v := float64(bytes) / math.Pow(1024, float64(tier))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[tier]
}
