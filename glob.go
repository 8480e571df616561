package ewf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/evidencekit/ewf/internal/ioerr"
)

// segmentNameRE matches the supported segment-extension schemes: `.E01`/
// `.e01` (EWF/EnCase), `.s01` (SMART), and `.Ex01`/`.ex01` (EnCase7+/EWF2,
// the literal `x` marker distinguishing it from the plain E-scheme). The
// captured letter and `x` marker drive which scheme subsequent segment
// names are generated under; case is preserved from the seed path.
var segmentNameRE = regexp.MustCompile(`^\.([EeSs])(x)?(\d{2})$`)

// extensionForIndex renders segment index n (1-based) as the extension
// the scheme: `.<letter>[x]<NN>` for n ≤ 99, then a base-26 two-letter
// continuation `.<letter>[x]<AA|aa>` for n > 99 (leading 'A'/'a' = 100),
// preserving the case of letter. ex selects the EnCase7+ `Ex01` marker.
func extensionForIndex(letter byte, ex bool, n int) (string, error) {
	if n < 1 {
		return "", ioerr.Errorf(ioerr.KindInvalidArgument, "glob: segment index %d < 1", n)
	}
	marker := ""
	if ex {
		marker = "x"
	}
	if n <= 99 {
		return fmt.Sprintf(".%c%s%02d", letter, marker, n), nil
	}
	idx := n - 100
	if idx >= 26*26 {
		return "", ioerr.Errorf(ioerr.KindOutOfBounds, "glob: segment index %d exceeds the two-letter extension range", n)
	}
	var first, second byte
	if letter >= 'a' {
		first = 'a' + byte(idx/26)
		second = 'a' + byte(idx%26)
	} else {
		first = 'A' + byte(idx/26)
		second = 'A' + byte(idx%26)
	}
	return fmt.Sprintf(".%c%s%c%c", letter, marker, first, second), nil
}

// Glob expands a single segment path (typically the first segment,
// `NAME.E01`) into the full ordered list of segment paths on disk,
// stopping at the first missing segment.
func Glob(seedPath string) ([]string, error) {
	dir := filepath.Dir(seedPath)
	base := filepath.Base(seedPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	m := segmentNameRE.FindStringSubmatch(ext)
	if m == nil {
		return nil, ioerr.Errorf(ioerr.KindInvalidArgument, "glob: %q does not match a recognized segment extension", seedPath)
	}
	letter := m[1][0]
	ex := m[2] == "x"
	startN, err := strconv.Atoi(m[3])
	if err != nil {
		return nil, ioerr.Wrap(ioerr.KindInvalidArgument, err, "glob: parse segment number in "+seedPath)
	}

	var paths []string
	for n := startN; ; n++ {
		segExt, err := extensionForIndex(letter, ex, n)
		if err != nil {
			return paths, nil // exhausted the naming scheme; what we found stands
		}
		candidate := filepath.Join(dir, stem+segExt)
		if _, statErr := os.Stat(candidate); statErr != nil {
			if n == startN {
				return nil, ioerr.Wrap(ioerr.KindNotFound, statErr, "glob: seed segment "+candidate+" not found").With("segment", n)
			}
			break
		}
		paths = append(paths, candidate)
	}
	return paths, nil
}
